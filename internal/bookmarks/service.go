// Package bookmarks performs the validated create, update and delete round trips
// against the remote bookmark table.
package bookmarks

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// User-facing outcome messages.
const (
	MsgAdded   = "Bookmark added."
	MsgUpdated = "Bookmark updated."
	MsgDeleted = "Bookmark deleted."

	MsgAddFailed    = "Failed to add bookmark."
	MsgUpdateFailed = "Failed to update bookmark."
	MsgDeleteFailed = "Failed to delete bookmark."
	MsgLoadFailed   = "Failed to load bookmarks."
)

var ErrNoSession = errors.New("not signed in")

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpLoad   Op = "load"
)

var failureMessages = map[Op]string{
	OpCreate: MsgAddFailed,
	OpUpdate: MsgUpdateFailed,
	OpDelete: MsgDeleteFailed,
	OpLoad:   MsgLoadFailed,
}

// OpError is a failed backend round trip. Message is the generic text shown to the
// user; Err keeps the cause for logs.
type OpError struct {
	Op      Op
	Message string
	Err     error
}

func (e *OpError) Error() string { return fmt.Sprintf("%s bookmark: %v", e.Op, e.Err) }
func (e *OpError) Unwrap() error { return e.Err }

// Failure wraps err into the OpError for op.
func Failure(op Op, err error) *OpError {
	return &OpError{Op: op, Message: failureMessages[op], Err: err}
}

// UserMessage returns the text to show for err: the validation message, the
// operation's generic failure message, or err itself as a last resort.
func UserMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var oerr *OpError
	if errors.As(err, &oerr) {
		return oerr.Message
	}
	return err.Error()
}

type Service struct {
	table  backend.BookmarkTable
	logger logger.Logger
}

func NewService(table backend.BookmarkTable, log logger.Logger) *Service {
	return &Service{
		table:  table,
		logger: log.With(logger.String("component", "bookmarks")),
	}
}

// Create inserts a bookmark owned by the session user and returns its id.
func (s *Service) Create(ctx context.Context, sess *domain.Session, title, url string) (int64, error) {
	in, err := domain.ValidateInput(title, url)
	if err != nil {
		return 0, err
	}
	if sess == nil {
		return 0, Failure(OpCreate, ErrNoSession)
	}

	id, err := s.table.Insert(ctx, sess.AccessToken, domain.NewBookmark{
		Title:  in.Title,
		URL:    in.URL,
		UserID: sess.UserID,
	})
	if err != nil {
		s.logger.Error("failed to add bookmark", logger.String("user_id", sess.UserID), logger.Error(err))
		return 0, Failure(OpCreate, err)
	}

	s.logger.Info("bookmark added", logger.String("user_id", sess.UserID), logger.Int64("id", id))
	return id, nil
}

// Update changes title and url of the row with id. Ownership is left to the
// backend's row policy; a row it refuses is reported as success with nothing changed.
func (s *Service) Update(ctx context.Context, sess *domain.Session, id int64, title, url string) error {
	in, err := domain.ValidateInput(title, url)
	if err != nil {
		return err
	}
	if sess == nil {
		return Failure(OpUpdate, ErrNoSession)
	}

	n, err := s.table.Update(ctx, sess.AccessToken, id, domain.BookmarkPatch{Title: in.Title, URL: in.URL})
	if err != nil {
		s.logger.Error("failed to update bookmark", logger.Int64("id", id), logger.Error(err))
		return Failure(OpUpdate, err)
	}
	if n == 0 {
		s.logger.Debug("update matched no rows", logger.Int64("id", id))
	}

	s.logger.Info("bookmark updated", logger.String("user_id", sess.UserID), logger.Int64("id", id))
	return nil
}

// Delete removes the row with id, subject to the backend's row policy.
func (s *Service) Delete(ctx context.Context, sess *domain.Session, id int64) error {
	if sess == nil {
		return Failure(OpDelete, ErrNoSession)
	}

	n, err := s.table.Delete(ctx, sess.AccessToken, id)
	if err != nil {
		s.logger.Error("failed to delete bookmark", logger.Int64("id", id), logger.Error(err))
		return Failure(OpDelete, err)
	}
	if n == 0 {
		s.logger.Debug("delete matched no rows", logger.Int64("id", id))
	}

	s.logger.Info("bookmark deleted", logger.String("user_id", sess.UserID), logger.Int64("id", id))
	return nil
}
