package domain

import (
	"fmt"
	"sort"
)

// NewPreviewSet orders server pages by index, checks that indices run 0..n-1
// and marks every page selected.
func NewPreviewSet(pages []PreviewPage) (PreviewSet, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: preview contains no pages", ErrMalformedResponse)
	}
	set := make(PreviewSet, len(pages))
	copy(set, pages)
	sort.Slice(set, func(i, j int) bool { return set[i].PageIndex < set[j].PageIndex })
	for i := range set {
		if set[i].PageIndex != i {
			return nil, fmt.Errorf("%w: page indices must be contiguous from 0, got %d at position %d", ErrMalformedResponse, set[i].PageIndex, i)
		}
		set[i].Selected = true
	}
	return set, nil
}

// Toggle flips one page's selection and returns a new set.
func (s PreviewSet) Toggle(pageIndex int) (PreviewSet, error) {
	if pageIndex < 0 || pageIndex >= len(s) {
		return s, fmt.Errorf("%w: %d", ErrPageOutOfRange, pageIndex)
	}
	out := s.clone()
	out[pageIndex].Selected = !out[pageIndex].Selected
	return out, nil
}

// SelectAll returns a copy with every page selected.
func (s PreviewSet) SelectAll() PreviewSet {
	return s.setAll(true)
}

// SelectNone returns a copy with no page selected.
func (s PreviewSet) SelectNone() PreviewSet {
	return s.setAll(false)
}

func (s PreviewSet) SelectedCount() int {
	n := 0
	for _, p := range s {
		if p.Selected {
			n++
		}
	}
	return n
}

// CanConfirm is false while nothing is selected; hosts disable confirm on it.
func (s PreviewSet) CanConfirm() bool {
	for _, p := range s {
		if p.Selected {
			return true
		}
	}
	return false
}

// Confirm emits the ordered indices of the selected pages.
func (s PreviewSet) Confirm() (SelectionResult, error) {
	result := make(SelectionResult, 0, len(s))
	for _, p := range s {
		if p.Selected {
			result = append(result, p.PageIndex)
		}
	}
	if len(result) == 0 {
		return nil, ErrEmptySelection
	}
	return result, nil
}

func (s PreviewSet) setAll(selected bool) PreviewSet {
	out := s.clone()
	for i := range out {
		out[i].Selected = selected
	}
	return out
}

func (s PreviewSet) clone() PreviewSet {
	out := make(PreviewSet, len(s))
	copy(out, s)
	return out
}
