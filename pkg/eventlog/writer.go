package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	"github.com/google/uuid"
	waLog "go.mau.fi/whatsmeow/util/log"
)

var invalidSegment = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Writer grava cada ChangeEvent confirmado em disco, como trilha de auditoria.
// Os arquivos nunca são relidos para reenvio.
type Writer struct {
	baseDir string
	log     waLog.Logger
	now     func() time.Time
}

// NewWriter returns nil when baseDir is empty; a nil Writer records nothing.
func NewWriter(baseDir string, log waLog.Logger) *Writer {
	base := strings.TrimSpace(baseDir)
	if base == "" {
		return nil
	}
	return &Writer{baseDir: filepath.Clean(base), log: log, now: time.Now}
}

// Enabled informa se a gravação de eventos está ativa.
func (w *Writer) Enabled() bool {
	return w != nil && w.baseDir != ""
}

type record struct {
	EventType   attendance.EventKind `json:"event_type"`
	CommunityID int                  `json:"community_id"`
	PersonID    int                  `json:"person_id"`
	RecordedAt  string               `json:"recorded_at"`
}

// Record stores evt under baseDir/<community>/<kind>/timestamp-uuid.json.
func (w *Writer) Record(evt attendance.ChangeEvent) error {
	if !w.Enabled() {
		return nil
	}

	dir := filepath.Join(w.baseDir, sanitizeSegment(strconv.Itoa(evt.CommunityID)), sanitizeSegment(string(evt.Kind)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	ts := w.now().UTC()
	data, err := json.MarshalIndent(record{
		EventType:   evt.Kind,
		CommunityID: evt.CommunityID,
		PersonID:    evt.PersonID,
		RecordedAt:  ts.Format(time.RFC3339Nano),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", ts.Format("20060102T150405Z"), uuid.NewString()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if w.log != nil {
		w.log.Debugf("event %s person=%d recorded at %s", evt.Kind, evt.PersonID, path)
	}
	return nil
}

func sanitizeSegment(raw string) string {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "unknown"
	}
	sanitized := invalidSegment.ReplaceAllString(candidate, "_")
	sanitized = strings.Trim(sanitized, "._-")
	if sanitized == "" {
		return "unknown"
	}
	return sanitized
}
