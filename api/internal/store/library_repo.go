package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const libraryTable = "library_resources"

// Resource is a generated document a teacher saved to their library.
type Resource struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Kind       string         `json:"kind"`
	Title      string         `json:"title"`
	Subject    string         `json:"subject"`
	Grade      string         `json:"grade"`
	Content    map[string]any `json:"content"`
	IsPublic   bool           `json:"is_public"`
	AuthorName string         `json:"author_name"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type LibraryRepo struct {
	DB    *sql.DB
	store *Store
}

func NewLibraryRepo(db *sql.DB) *LibraryRepo { return &LibraryRepo{DB: db, store: New(db)} }

// Save inserts r and returns the new id.
func (r *LibraryRepo) Save(ctx context.Context, res Resource) (string, error) {
	if err := validateResource(res); err != nil {
		return "", err
	}
	rec := map[string]any{
		"id":          uuid.NewString(),
		"user_id":     res.UserID,
		"kind":        res.Kind,
		"title":       res.Title,
		"subject":     res.Subject,
		"grade":       res.Grade,
		"content":     res.Content,
		"is_public":   res.IsPublic,
		"author_name": res.AuthorName,
	}
	return r.store.Insert(ctx, libraryTable, rec)
}

// listFilters scopes a listing to userID and, when kind is set, to one kind.
func listFilters(userID, kind string) []Filter {
	f := []Filter{Eq("user_id", userID)}
	if kind = strings.TrimSpace(kind); kind != "" {
		f = append(f, Eq("kind", kind))
	}
	return f
}

var newestFirst = []Order{{Column: "created_at", Desc: true}}

// List returns the newest resources of userID, optionally of one kind.
func (r *LibraryRepo) List(ctx context.Context, userID, kind string, limit int) ([]Resource, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("library: user_id is required")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.store.Select(ctx, libraryTable, listFilters(userID, kind), newestFirst, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(rows))
	for _, row := range rows {
		res, err := resourceFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Get returns one resource owned by userID.
func (r *LibraryRepo) Get(ctx context.Context, userID, id string) (Resource, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Resource{}, ErrNotFound
	}
	rows, err := r.store.Select(ctx, libraryTable, []Filter{Eq("id", id), Eq("user_id", userID)}, nil, 1)
	if err != nil {
		return Resource{}, err
	}
	if len(rows) == 0 {
		return Resource{}, ErrNotFound
	}
	return resourceFromRow(rows[0])
}

// Rename changes the title of a resource owned by userID.
func (r *LibraryRepo) Rename(ctx context.Context, userID, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("library: title is required")
	}
	return r.patch(ctx, userID, id, map[string]any{"title": title})
}

// UpdateContent replaces the document body of a resource owned by userID.
func (r *LibraryRepo) UpdateContent(ctx context.Context, userID, id string, content map[string]any) error {
	if content == nil {
		return errors.New("library: content is required")
	}
	return r.patch(ctx, userID, id, map[string]any{"content": content})
}

func (r *LibraryRepo) patch(ctx context.Context, userID, id string, patch map[string]any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	patch["updated_at"] = time.Now().UTC()
	n, err := r.store.Update(ctx, libraryTable, []Filter{Eq("id", id), Eq("user_id", userID)}, patch)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a resource owned by userID.
func (r *LibraryRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	n, err := r.store.Delete(ctx, libraryTable, []Filter{Eq("id", id), Eq("user_id", userID)})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeOlderThan deletes private resources not touched for olderThan.
func (r *LibraryRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	return r.store.Delete(ctx, libraryTable, purgeFilters(time.Now().Add(-olderThan)))
}

func purgeFilters(cutoff time.Time) []Filter {
	return []Filter{
		{Column: "updated_at", Op: OpLt, Value: cutoff},
		Eq("is_public", false),
	}
}

// resourceFromRow maps a selected library row onto a Resource.
func resourceFromRow(row Row) (Resource, error) {
	res := Resource{
		ID:         text(row["id"]),
		UserID:     text(row["user_id"]),
		Kind:       text(row["kind"]),
		Title:      text(row["title"]),
		Subject:    text(row["subject"]),
		Grade:      text(row["grade"]),
		AuthorName: text(row["author_name"]),
	}
	res.IsPublic, _ = row["is_public"].(bool)
	res.CreatedAt, _ = row["created_at"].(time.Time)
	res.UpdatedAt, _ = row["updated_at"].(time.Time)

	switch c := row["content"].(type) {
	case map[string]any:
		res.Content = c
	case nil:
	default:
		return Resource{}, fmt.Errorf("library %s: bad content of type %T", res.ID, c)
	}
	return res, nil
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

func validateResource(res Resource) error {
	switch {
	case strings.TrimSpace(res.UserID) == "":
		return errors.New("library: user_id is required")
	case strings.TrimSpace(res.Kind) == "":
		return errors.New("library: kind is required")
	case strings.TrimSpace(res.Title) == "":
		return errors.New("library: title is required")
	case res.Content == nil:
		return errors.New("library: content is required")
	}
	return nil
}
