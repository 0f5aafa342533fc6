package service

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-portal-api/pkg/supabase"
)

// ErrBookIncomplete indicates a submitted book lacks a title or author.
var ErrBookIncomplete = errors.New("missing title or author")

const booksTable = "books"

// BookCatalog is the upstream table the books proxy reads and writes.
type BookCatalog interface {
	Configured() bool
	Select(table string) ([]json.RawMessage, error)
	Insert(table string, row map[string]any) (json.RawMessage, error)
}

// BooksService proxies the external books table.
type BooksService interface {
	List() ([]json.RawMessage, error)
	Add(payload map[string]any) (json.RawMessage, error)
}

type booksService struct {
	catalog BookCatalog
	logger  zerolog.Logger
}

// NewBooksService constructs the books proxy service.
func NewBooksService(catalog BookCatalog, logger zerolog.Logger) BooksService {
	return &booksService{
		catalog: catalog,
		logger:  logger.With().Str("component", "books_service").Logger(),
	}
}

func (s *booksService) List() ([]json.RawMessage, error) {
	if !s.catalog.Configured() {
		return nil, supabase.ErrNotConfigured
	}
	return s.catalog.Select(booksTable)
}

func (s *booksService) Add(payload map[string]any) (json.RawMessage, error) {
	if !s.catalog.Configured() {
		return nil, supabase.ErrNotConfigured
	}
	if !present(payload["title"]) || !present(payload["author"]) {
		return nil, ErrBookIncomplete
	}

	row, err := s.catalog.Insert(booksTable, payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("book insert failed")
		return nil, err
	}
	return row, nil
}

func present(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return v
	case float64:
		return v != 0
	case json.Number:
		return v.String() != "0"
	default:
		return true
	}
}
