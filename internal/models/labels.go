package models

import (
	"golang.org/x/text/cases"
)

// FoldLabel normalizes a label for case-insensitive comparison.
func FoldLabel(label string) string {
	return cases.Fold().String(label)
}

// ContainsLabel reports whether labels holds label, ignoring case.
func ContainsLabel(labels []string, label string) bool {
	want := FoldLabel(label)
	for _, l := range labels {
		if FoldLabel(l) == want {
			return true
		}
	}
	return false
}
