package runview

// Column and sort actions are thin read-then-patch wrappers over Update.

// ToggleColumn flips the visibility of a column of ns.
func (s *Store) ToggleColumn(ns Namespace, key string) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		return SettingsPatch{Columns: ToggleColumnVisible(cur.Columns, key)}
	})
}

// ShowColumns makes every listed column of ns visible, or every column when
// no key is given.
func (s *Store) ShowColumns(ns Namespace, keys ...string) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		return SettingsPatch{Columns: SetColumnsVisible(cur.Columns, true, keysOrAll(cur.Columns, keys)...)}
	})
}

// HideColumns hides the listed columns of ns. Locked columns stay visible.
func (s *Store) HideColumns(ns Namespace, keys ...string) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		return SettingsPatch{Columns: SetColumnsVisible(cur.Columns, false, keysOrAll(cur.Columns, keys)...)}
	})
}

// PinColumn flips the pinned flag of a column of ns.
func (s *Store) PinColumn(ns Namespace, key string) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		return SettingsPatch{Columns: ToggleColumnPinned(cur.Columns, key)}
	})
}

// ResizeColumn sets a column width. Pinned columns keep their width.
func (s *Store) ResizeColumn(ns Namespace, key string, width int) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		return SettingsPatch{Columns: ResizeColumn(cur.Columns, key, width)}
	})
}

// MoveColumn moves a column to position target.
func (s *Store) MoveColumn(ns Namespace, key string, target int) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		return SettingsPatch{Columns: MoveColumn(cur.Columns, key, target)}
	})
}

// AddSort appends a sort field on field to ns.
func (s *Store) AddSort(ns Namespace, field string, order SortOrder) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		return SettingsPatch{SortFields: AddSortField(cur.SortFields, field, order)}
	})
}

// RemoveSort drops the sort field with the given instance key.
func (s *Store) RemoveSort(ns Namespace, key string) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		return SettingsPatch{SortFields: RemoveSortField(cur.SortFields, key)}
	})
}

// UpdateSort rewrites the field or order of a sort entry.
func (s *Store) UpdateSort(ns Namespace, key, field string, order SortOrder) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		return SettingsPatch{SortFields: UpdateSortField(cur.SortFields, key, field, order)}
	})
}

// FlipSort reverses the direction of a sort entry.
func (s *Store) FlipSort(ns Namespace, key string) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		return SettingsPatch{SortFields: ToggleSortOrder(cur.SortFields, key)}
	})
}

// ClearSort removes every sort field of ns.
func (s *Store) ClearSort(ns Namespace) error {
	return s.Patch(ns, SettingsPatch{ClearSort: true})
}

// SetSearchText stores the persisted search and jumps back to page one.
func (s *Store) SetSearchText(ns Namespace, text string) error {
	return s.Patch(ns, SettingsPatch{SearchText: Ptr(text), CurrentPage: Ptr(1)})
}

// SetGroupBy groups ns by field; an empty field disables grouping.
func (s *Store) SetGroupBy(ns Namespace, field string) error {
	return s.Patch(ns, SettingsPatch{GroupBy: Ptr(field)})
}

// SetPage moves the table of ns to page.
func (s *Store) SetPage(ns Namespace, page int) error {
	if page < 1 {
		page = 1
	}
	return s.Patch(ns, SettingsPatch{CurrentPage: Ptr(page)})
}

// SetTablePageSize changes the table page size of ns and resets to page one.
func (s *Store) SetTablePageSize(ns Namespace, size int) error {
	return s.Patch(ns, SettingsPatch{PageSize: Ptr(size), CurrentPage: Ptr(1)})
}

// SetCropMode changes how names are truncated in list views of ns.
func (s *Store) SetCropMode(ns Namespace, mode CropMode) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		display := cur.Display
		display.CropMode = mode
		return SettingsPatch{Display: &display}
	})
}

// SetListSortOrder changes the list sort direction of ns.
func (s *Store) SetListSortOrder(ns Namespace, order SortOrder) error {
	return s.Update(ns, func(cur SharedTableSettings) SettingsPatch {
		display := cur.Display
		display.SortOrder = order
		return SettingsPatch{Display: &display}
	})
}

func keysOrAll(columns []ColumnConfig, keys []string) []string {
	if len(keys) > 0 {
		return keys
	}
	all := make([]string, 0, len(columns))
	for _, col := range columns {
		all = append(all, col.Key)
	}
	return all
}
