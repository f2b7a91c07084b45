package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skulanov/OP-test/internal/model"
)

// SaveBank stores a parsed bank under name. An existing bank of the same
// name is replaced only when replace is set; otherwise ErrBankExists.
func (s *Store) SaveBank(ctx context.Context, name, source string, bank model.Bank, replace bool) (model.BankInfo, error) {
	existing, err := s.GetBank(ctx, name)
	switch {
	case err == nil && !replace:
		return model.BankInfo{}, fmt.Errorf("save bank %q: %w", name, ErrBankExists)
	case err != nil && !errors.Is(err, ErrNotFound):
		return model.BankInfo{}, err
	}

	info := model.BankInfo{
		ID:         uuid.NewString(),
		Name:       name,
		Source:     source,
		Questions:  len(bank),
		ImportedAt: time.Now().UTC().Truncate(time.Second),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.BankInfo{}, err
	}
	defer tx.Rollback()

	if existing.ID != "" {
		if err := s.deleteBankTx(ctx, tx, existing.ID); err != nil {
			return model.BankInfo{}, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO banks (id, name, source, imported_at) VALUES (?, ?, ?, ?)`),
		info.ID, info.Name, info.Source, info.ImportedAt.Unix(),
	); err != nil {
		return model.BankInfo{}, fmt.Errorf("insert bank: %w", err)
	}

	for i, q := range bank {
		if _, err := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO questions (bank_id, position, chapter, prompt, correct_letter) VALUES (?, ?, ?, ?, ?)`),
			info.ID, i, q.Chapter, q.Prompt, q.CorrectLetter,
		); err != nil {
			return model.BankInfo{}, fmt.Errorf("insert question %d: %w", i, err)
		}
		for j, o := range q.Options {
			if _, err := tx.ExecContext(ctx,
				s.rebind(`INSERT INTO options (bank_id, question_pos, position, letter, text, is_correct) VALUES (?, ?, ?, ?, ?, ?)`),
				info.ID, i, j, o.Letter, o.Text, boolInt(o.IsCorrect),
			); err != nil {
				return model.BankInfo{}, fmt.Errorf("insert option %d/%d: %w", i, j, err)
			}
		}
	}

	return info, tx.Commit()
}

// GetBank returns the catalogue entry for name.
func (s *Store) GetBank(ctx context.Context, name string) (model.BankInfo, error) {
	var info model.BankInfo
	var importedAt int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT b.id, b.name, b.source, b.imported_at,
		        (SELECT COUNT(*) FROM questions q WHERE q.bank_id = b.id)
		 FROM banks b WHERE b.name = ?`), name,
	).Scan(&info.ID, &info.Name, &info.Source, &importedAt, &info.Questions)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankInfo{}, fmt.Errorf("bank %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return model.BankInfo{}, err
	}
	info.ImportedAt = time.Unix(importedAt, 0).UTC()
	return info, nil
}

// LoadBank returns the catalogue entry and the questions of name, in the
// order they were parsed.
func (s *Store) LoadBank(ctx context.Context, name string) (model.BankInfo, model.Bank, error) {
	info, err := s.GetBank(ctx, name)
	if err != nil {
		return model.BankInfo{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT chapter, prompt, correct_letter FROM questions WHERE bank_id = ? ORDER BY position`), info.ID)
	if err != nil {
		return info, nil, err
	}
	bank := make(model.Bank, 0, info.Questions)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.Chapter, &q.Prompt, &q.CorrectLetter); err != nil {
			rows.Close()
			return info, nil, err
		}
		bank = append(bank, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return info, nil, err
	}

	rows, err = s.db.QueryContext(ctx, s.rebind(
		`SELECT question_pos, letter, text, is_correct FROM options WHERE bank_id = ? ORDER BY question_pos, position`), info.ID)
	if err != nil {
		return info, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var pos, correct int
		var o model.Option
		if err := rows.Scan(&pos, &o.Letter, &o.Text, &correct); err != nil {
			return info, nil, err
		}
		if pos < 0 || pos >= len(bank) {
			return info, nil, fmt.Errorf("option references missing question %d", pos)
		}
		o.IsCorrect = correct != 0
		bank[pos].Options = append(bank[pos].Options, o)
	}
	return info, bank, rows.Err()
}

// ListBanks returns every stored bank ordered by name.
func (s *Store) ListBanks(ctx context.Context) ([]model.BankInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.name, b.source, b.imported_at,
		        (SELECT COUNT(*) FROM questions q WHERE q.bank_id = b.id)
		 FROM banks b ORDER BY b.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var banks []model.BankInfo
	for rows.Next() {
		var info model.BankInfo
		var importedAt int64
		if err := rows.Scan(&info.ID, &info.Name, &info.Source, &importedAt, &info.Questions); err != nil {
			return nil, err
		}
		info.ImportedAt = time.Unix(importedAt, 0).UTC()
		banks = append(banks, info)
	}
	return banks, rows.Err()
}

// DeleteBank removes a bank and its questions.
func (s *Store) DeleteBank(ctx context.Context, name string) error {
	info, err := s.GetBank(ctx, name)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.deleteBankTx(ctx, tx, info.ID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) deleteBankTx(ctx context.Context, tx *sql.Tx, id string) error {
	for _, q := range []string{
		`DELETE FROM options WHERE bank_id = ?`,
		`DELETE FROM questions WHERE bank_id = ?`,
		`DELETE FROM banks WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, s.rebind(q), id); err != nil {
			return fmt.Errorf("delete bank %s: %w", id, err)
		}
	}
	return nil
}
