package runview

// DiffVisibility compares two visible sets and returns the ids to show (in
// next but not prev, in next order) and to hide (in prev but not next, in prev
// order).
func DiffVisibility(prev, next []NativeID) (show, hide []NativeID) {
	prevSet := make(map[NativeID]struct{}, len(prev))
	for _, id := range prev {
		prevSet[id] = struct{}{}
	}
	nextSet := make(map[NativeID]struct{}, len(next))
	for _, id := range next {
		nextSet[id] = struct{}{}
	}
	show = []NativeID{}
	hide = []NativeID{}
	for _, id := range next {
		if _, ok := prevSet[id]; !ok {
			show = append(show, id)
			prevSet[id] = struct{}{}
		}
	}
	for _, id := range prev {
		if _, ok := nextSet[id]; !ok {
			hide = append(hide, id)
			nextSet[id] = struct{}{}
		}
	}
	return show, hide
}
