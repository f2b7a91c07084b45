package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/skulanov/OP-test/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testBank() model.Bank {
	return model.Bank{
		{
			Chapter: "1. Основы",
			Prompt:  "Что такое HTTP?",
			Options: []model.Option{
				{Letter: "А", Text: "Протокол", IsCorrect: true},
				{Letter: "Б", Text: "Язык"},
				{Letter: "В", Text: "База данных"},
			},
			CorrectLetter: "А",
		},
		{
			Chapter: "2. Сети",
			Prompt:  "Что такое TCP?",
			Options: []model.Option{
				{Letter: "А", Text: "Формат"},
				{Letter: "Б", Text: "Транспорт"},
			},
		},
		{
			Chapter: "1. Основы",
			Prompt:  "Что такое DNS?",
			Options: []model.Option{
				{Letter: "А", Text: "Имена", IsCorrect: true},
				{Letter: "Б", Text: "Почта"},
			},
			CorrectLetter: "А",
		},
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Driver("oracle"), ""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestSaveAndLoadBank(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	info, err := s.SaveBank(ctx, "op", "questions.txt", testBank(), false)
	if err != nil {
		t.Fatalf("SaveBank: %v", err)
	}
	if info.ID == "" || info.Questions != 3 {
		t.Errorf("unexpected info %+v", info)
	}

	got, bank, err := s.LoadBank(ctx, "op")
	if err != nil {
		t.Fatalf("LoadBank: %v", err)
	}
	if got.ID != info.ID || got.Source != "questions.txt" || got.Questions != 3 {
		t.Errorf("unexpected loaded info %+v", got)
	}
	if !got.ImportedAt.Equal(info.ImportedAt) {
		t.Errorf("expected imported_at %v, got %v", info.ImportedAt, got.ImportedAt)
	}
	if !reflect.DeepEqual(bank, testBank()) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", bank, testBank())
	}
}

func TestSaveBankEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveBank(ctx, "empty", "", model.Bank{}, false); err != nil {
		t.Fatalf("SaveBank: %v", err)
	}
	_, bank, err := s.LoadBank(ctx, "empty")
	if err != nil {
		t.Fatalf("LoadBank: %v", err)
	}
	if len(bank) != 0 {
		t.Errorf("expected empty bank, got %d", len(bank))
	}
}

func TestSaveBankReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveBank(ctx, "op", "a.txt", testBank(), false)
	if err != nil {
		t.Fatalf("SaveBank: %v", err)
	}

	_, err = s.SaveBank(ctx, "op", "b.txt", testBank()[:1], false)
	if !errors.Is(err, ErrBankExists) {
		t.Fatalf("expected ErrBankExists, got %v", err)
	}

	second, err := s.SaveBank(ctx, "op", "b.txt", testBank()[:1], true)
	if err != nil {
		t.Fatalf("SaveBank replace: %v", err)
	}
	if second.ID == first.ID {
		t.Error("replaced bank should get a new id")
	}

	got, bank, err := s.LoadBank(ctx, "op")
	if err != nil {
		t.Fatalf("LoadBank: %v", err)
	}
	if got.Source != "b.txt" || len(bank) != 1 {
		t.Errorf("expected replaced bank, got %+v with %d questions", got, len(bank))
	}
	if len(bank[0].Options) != 3 {
		t.Errorf("stale options left behind: %d", len(bank[0].Options))
	}
}

func TestBankNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.LoadBank(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadBank: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteBank(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteBank: expected ErrNotFound, got %v", err)
	}
	if _, err := s.ExportBank(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ExportBank: expected ErrNotFound, got %v", err)
	}
}

func TestListAndDeleteBanks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	banks, err := s.ListBanks(ctx)
	if err != nil {
		t.Fatalf("ListBanks: %v", err)
	}
	if len(banks) != 0 {
		t.Fatalf("expected no banks, got %d", len(banks))
	}

	for _, name := range []string{"zeta", "alpha"} {
		if _, err := s.SaveBank(ctx, name, "", testBank(), false); err != nil {
			t.Fatalf("SaveBank %s: %v", name, err)
		}
	}

	banks, _ = s.ListBanks(ctx)
	if len(banks) != 2 || banks[0].Name != "alpha" || banks[1].Name != "zeta" {
		t.Fatalf("expected [alpha zeta], got %+v", banks)
	}
	if banks[0].Questions != 3 {
		t.Errorf("expected 3 questions, got %d", banks[0].Questions)
	}

	if err := s.DeleteBank(ctx, "alpha"); err != nil {
		t.Fatalf("DeleteBank: %v", err)
	}
	banks, _ = s.ListBanks(ctx)
	if len(banks) != 1 || banks[0].Name != "zeta" {
		t.Errorf("expected [zeta], got %+v", banks)
	}
}

func TestExportBank(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveBank(ctx, "op", "q.txt", testBank(), false); err != nil {
		t.Fatalf("SaveBank: %v", err)
	}

	exp, err := s.ExportBank(ctx, "op")
	if err != nil {
		t.Fatalf("ExportBank: %v", err)
	}
	if exp.Name != "op" || exp.NumQuestions != 3 {
		t.Errorf("unexpected export header %+v", exp)
	}
	if len(exp.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(exp.Chapters))
	}
	if exp.Chapters[0].Title != "1. Основы" || len(exp.Chapters[0].Questions) != 2 {
		t.Errorf("unexpected first chapter %+v", exp.Chapters[0])
	}
	if exp.Chapters[1].Title != "2. Сети" || len(exp.Chapters[1].Questions) != 1 {
		t.Errorf("unexpected second chapter %+v", exp.Chapters[1])
	}

	all, err := s.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 export, got %d", len(all))
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash(ctx, "/some/questions.txt")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash(ctx, "/some/questions.txt", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash(ctx, "/some/questions.txt")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash(ctx, "/some/questions.txt", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash(ctx, "/some/questions.txt")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver Driver
		in     string
		want   string
	}{
		{DriverSQLite, "SELECT ? , ?", "SELECT ? , ?"},
		{DriverPostgres, "SELECT ? , ?", "SELECT $1 , $2"},
		{DriverPostgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		s := &Store{driver: tt.driver}
		if got := s.rebind(tt.in); got != tt.want {
			t.Errorf("rebind(%s, %q) = %q, want %q", tt.driver, tt.in, got, tt.want)
		}
	}
}
