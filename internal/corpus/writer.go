package corpus

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/pkg/utils"
)

// Save writes courses as an indented JSON array, replacing path atomically.
func Save(path string, courses []models.Course) error {
	if courses == nil {
		courses = []models.Course{}
	}
	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(courses)
	})
	if err != nil {
		return fmt.Errorf("save corpus: %w", err)
	}
	return nil
}
