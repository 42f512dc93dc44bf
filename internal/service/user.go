package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/templui/usermap/internal/model"
	"github.com/templui/usermap/internal/repository"
	"github.com/templui/usermap/internal/storage"
	"github.com/templui/usermap/internal/validation"
)

var exportHeader = []string{"name", "role", "website", "latitude", "longitude"}

type UserService struct {
	userRepository repository.UserRepository
	lifecycle      *Lifecycle
	storage        storage.Storage
	now            func() time.Time
}

// NewUserService wires the user service. store may be nil, in which case
// exports are only streamed.
func NewUserService(
	userRepository repository.UserRepository,
	lifecycle *Lifecycle,
	store storage.Storage,
) *UserService {
	return &UserService{
		userRepository: userRepository,
		lifecycle:      lifecycle,
		storage:        store,
		now:            time.Now,
	}
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepository.ByID(ctx, id)
}

func (s *UserService) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.userRepository.ByEmail(ctx, validation.NormalizeEmail(email))
}

// UpdateBasicInformation saves the profile fields of the edit account page.
func (s *UserService) UpdateBasicInformation(ctx context.Context, user *model.User, form validation.BasicInformation) (*model.User, error) {
	form.Email = validation.NormalizeEmail(form.Email)

	result := validation.Check(form)
	if !result.Valid() {
		return nil, &FormError{Result: result}
	}

	if form.Email != user.Email {
		_, err := s.userRepository.ByEmail(ctx, form.Email)
		if err == nil {
			return nil, ErrEmailAlreadyExists
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
	}

	updated := *user
	updated.Email = form.Email
	updated.Name = form.Name
	updated.Website = form.Website
	updated.Latitude = form.Latitude
	updated.Longitude = form.Longitude
	updated.EmailUpdates = form.EmailUpdates

	err := s.userRepository.UpdateProfile(ctx, &updated)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	slog.InfoContext(ctx, "basic information updated", "user_id", updated.ID)
	return &updated, nil
}

// PublicUsers lists confirmed, active users with role for the map.
func (s *UserService) PublicUsers(ctx context.Context, role model.Role) ([]model.PublicUser, error) {
	users, err := s.userRepository.ListPublic(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	out := make([]model.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}

// WriteCSV writes every publicly listed user of every role to w.
func (s *UserService) WriteCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	err := cw.Write(exportHeader)
	if err != nil {
		return err
	}

	for _, role := range model.Roles() {
		users, err := s.PublicUsers(ctx, role.Role)
		if err != nil {
			return err
		}
		for _, u := range users {
			err = cw.Write([]string{
				csvCell(u.Name),
				csvCell(u.RoleName),
				csvCell(u.Website),
				strconv.FormatFloat(u.Latitude, 'f', -1, 64),
				strconv.FormatFloat(u.Longitude, 'f', -1, 64),
			})
			if err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// csvCell keeps spreadsheet programs from evaluating user supplied text as
// a formula.
func csvCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// HasExportStorage reports whether exports are uploaded instead of streamed.
func (s *UserService) HasExportStorage() bool {
	return s.storage != nil
}

// PublishExport uploads a fresh CSV export and returns a temporary link to it.
func (s *UserService) PublishExport(ctx context.Context) (string, error) {
	if s.storage == nil {
		return "", errors.New("export storage not configured")
	}

	var buf bytes.Buffer
	err := s.WriteCSV(ctx, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build export: %w", err)
	}

	key := fmt.Sprintf("exports/users-%s.csv", s.now().UTC().Format("20060102T150405Z"))
	err = s.storage.Save(ctx, key, "text/csv", &buf)
	if err != nil {
		return "", err
	}

	url, err := s.storage.DownloadURL(ctx, key, ExportFilename)
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "user export published", "key", key)
	return url, nil
}

const ExportFilename = "users.csv"

// List returns all accounts, optionally restricted to one role.
func (s *UserService) List(ctx context.Context, role *model.Role) ([]model.User, error) {
	users, err := s.userRepository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if role == nil {
		return users, nil
	}

	filtered := users[:0]
	for _, u := range users {
		if u.Role == *role {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

// SetActive is the administrative activation switch.
func (s *UserService) SetActive(ctx context.Context, email string, active bool) (*model.User, error) {
	user, err := s.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if active {
		err = s.lifecycle.Reactivate(ctx, user)
	} else {
		err = s.lifecycle.Deactivate(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}
