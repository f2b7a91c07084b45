package model

import "time"

// BankExport is the top-level JSON structure for bank export.
type BankExport struct {
	Name         string          `json:"name"`
	Source       string          `json:"source"`
	ImportedAt   time.Time       `json:"imported_at"`
	NumQuestions int             `json:"num_questions"`
	Chapters     []ChapterExport `json:"chapters"`
}

// ChapterExport groups the questions of one chapter in bank order.
type ChapterExport struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// NewBankExport groups the bank by chapter, keeping first-appearance order.
func NewBankExport(info BankInfo, bank Bank) BankExport {
	export := BankExport{
		Name:         info.Name,
		Source:       info.Source,
		ImportedAt:   info.ImportedAt,
		NumQuestions: len(bank),
	}
	index := make(map[string]int)
	for _, q := range bank {
		i, ok := index[q.Chapter]
		if !ok {
			i = len(export.Chapters)
			index[q.Chapter] = i
			export.Chapters = append(export.Chapters, ChapterExport{Title: q.Chapter})
		}
		export.Chapters[i].Questions = append(export.Chapters[i].Questions, q)
	}
	return export
}
