package reservation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"

	"github.com/samber/lo"

	"github.com/Alijeyrad/simorq_booking/internal/domain"
	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

const fileFieldType = "file"

// FileStore keeps custom-field attachments.
type FileStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, keys ...string) error
}

type storedField struct {
	Label string          `json:"label"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type storedFile struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// customFields keeps the answers to known fields and uploads file answers
// under customfields/<token>/. Unknown field ids are dropped, and so are
// fields not linked to the event when the event has any links.
func (s *reservationService) customFields(ctx context.Context, db *repo.Client, token string, eventID int64, in map[string]CustomFieldInput) (json.RawMessage, []domain.UploadedFile, error) {
	if len(in) == 0 {
		return nil, nil, nil
	}
	defs, err := db.CustomField.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	var linked []int64
	if eventID != 0 {
		if linked, err = db.CustomField.EventFieldIDs(ctx, eventID); err != nil {
			return nil, nil, err
		}
	}
	types := make(map[int64]string, len(defs))
	for _, d := range defs {
		if len(linked) > 0 && !lo.Contains(linked, d.ID) {
			continue
		}
		types[d.ID] = d.Type
	}

	out := make(map[string]storedField, len(in))
	var uploaded []domain.UploadedFile
	for key, field := range in {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		typ, ok := types[id]
		if !ok {
			continue
		}
		if typ != fileFieldType {
			out[key] = storedField{Label: field.Label, Type: typ, Value: field.Value}
			continue
		}

		files, err := s.upload(ctx, id, token, field.Files)
		uploaded = append(uploaded, files...)
		if err != nil {
			s.discard(ctx, uploaded)
			return nil, nil, err
		}
		refs := make([]storedFile, 0, len(files))
		for _, f := range files {
			refs = append(refs, storedFile{Name: f.Name, Key: f.Key})
		}
		value, _ := json.Marshal(refs)
		out[key] = storedField{Label: field.Label, Type: typ, Value: value}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, nil, fmt.Errorf("encode custom fields: %w", err)
	}
	return raw, uploaded, nil
}

func (s *reservationService) upload(ctx context.Context, fieldID int64, token string, files []FileInput) ([]domain.UploadedFile, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.files == nil {
		return nil, fmt.Errorf("%w: field %d", ErrUploadsDisabled, fieldID)
	}
	var out []domain.UploadedFile
	for _, f := range files {
		name := path.Base(f.Name)
		key := path.Join("customfields", token, name)
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := s.files.Upload(ctx, key, contentType, bytes.NewReader(f.Content), int64(len(f.Content))); err != nil {
			return out, err
		}
		out = append(out, domain.UploadedFile{FieldID: fieldID, Name: name, Key: key})
	}
	return out, nil
}

// discard removes files uploaded for a booking that was rolled back.
func (s *reservationService) discard(ctx context.Context, files []domain.UploadedFile) {
	if s.files == nil {
		return
	}
	if len(files) == 0 {
		return
	}
	keys := lo.Map(files, func(f domain.UploadedFile, _ int) string { return f.Key })
	if err := s.files.Delete(ctx, keys...); err != nil {
		slog.Warn("discard custom field uploads failed", "keys", keys, "err", err)
	}
}
