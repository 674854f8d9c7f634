package actions

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arley101/dynamics-gateway/internal/auth"
)

// MemoryStore is the in-process session memory backing the memory_* actions.
// Entries are grouped by session and keyed within it; each write records a
// timestamp. The store is safe for concurrent use and lives for the process
// lifetime only.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]memoryEntry

	now func() time.Time // test seam
}

type memoryEntry struct {
	Value     any
	Timestamp time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]map[string]memoryEntry),
		now:      time.Now,
	}
}

// Save stores value under (sessionID, key), overwriting any previous entry.
func (s *MemoryStore) Save(sessionID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = make(map[string]memoryEntry)
		s.sessions[sessionID] = sess
	}
	sess[key] = memoryEntry{Value: value, Timestamp: s.now().UTC()}
}

// Get returns the value for (sessionID, key).
func (s *MemoryStore) Get(sessionID, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		if e, ok := sess[key]; ok {
			return e.Value, true
		}
	}
	return nil, false
}

// Keys returns the sorted keys stored for sessionID.
func (s *MemoryStore) Keys(sessionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(sess))
	for k := range sess {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sessions returns all session IDs in sorted order.
func (s *MemoryStore) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Delete removes one key, or the whole session when key is empty. It reports
// whether anything was removed.
func (s *MemoryStore) Delete(sessionID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	if key == "" {
		delete(s.sessions, sessionID)
		return true
	}
	if _, ok := sess[key]; !ok {
		return false
	}
	delete(sess, key)
	if len(sess) == 0 {
		delete(s.sessions, sessionID)
	}
	return true
}

// exportRow is one flattened entry for export.
type exportRow struct {
	SessionID string
	Key       string
	Value     any
	Timestamp time.Time
}

// export returns the session's entries sorted by key.
func (s *MemoryStore) export(sessionID string) []exportRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	rows := make([]exportRow, 0, len(sess))
	for k, e := range sess {
		rows = append(rows, exportRow{SessionID: sessionID, Key: k, Value: e.Value, Timestamp: e.Timestamp})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// MemoryActions exposes the session-memory action handlers bound to a store.
type MemoryActions struct {
	store *MemoryStore
}

// NewMemoryActions binds the handlers to store.
func NewMemoryActions(store *MemoryStore) *MemoryActions {
	return &MemoryActions{store: store}
}

// requireSession extracts the session_id parameter, reporting a 400 error
// result when missing.
func requireSession(action string, params map[string]any) (string, Result, bool) {
	sessionID := StringParam(params, "session_id")
	if sessionID == "" {
		return "", Result{
			Kind:       KindError,
			HTTPStatus: http.StatusBadRequest,
			Message:    fmt.Sprintf("'session_id' es requerido para %s.", action),
			Action:     action,
		}, false
	}
	return sessionID, Result{}, true
}

// Save implements memory_save_session. Key and value are read from
// "key"/"value", with "clave"/"valor" accepted as legacy aliases.
func (m *MemoryActions) Save(ctx context.Context, _ *auth.Client, params map[string]any) (Result, error) {
	sessionID, errRes, ok := requireSession("memory_save_session", params)
	if !ok {
		return errRes, nil
	}
	key := StringParam(params, "key")
	if key == "" {
		key = StringParam(params, "clave")
	}
	if key == "" {
		return ErrorResult(http.StatusBadRequest, "'key' es requerido para memory_save_session."), nil
	}
	var value any
	if params != nil {
		if v, ok := params["value"]; ok {
			value = v
		} else {
			value = params["valor"]
		}
	}
	m.store.Save(sessionID, key, value)
	return JSON(map[string]any{
		"status":     "success",
		"session_id": sessionID,
		"key":        key,
	}), nil
}

// Get implements memory_get_session. With "key" set it returns one value,
// otherwise every key of the session.
func (m *MemoryActions) Get(ctx context.Context, _ *auth.Client, params map[string]any) (Result, error) {
	sessionID, errRes, ok := requireSession("memory_get_session", params)
	if !ok {
		return errRes, nil
	}
	if key := StringParam(params, "key"); key != "" {
		v, found := m.store.Get(sessionID, key)
		if !found {
			return ErrorResult(http.StatusNotFound,
				fmt.Sprintf("Clave '%s' no encontrada en la sesión '%s'.", key, sessionID)), nil
		}
		return JSON(map[string]any{
			"status":     "success",
			"session_id": sessionID,
			"key":        key,
			"value":      v,
		}), nil
	}
	keys := m.store.Keys(sessionID)
	values := make(map[string]any, len(keys))
	for _, k := range keys {
		v, _ := m.store.Get(sessionID, k)
		values[k] = v
	}
	return JSON(map[string]any{
		"status":     "success",
		"session_id": sessionID,
		"data":       values,
	}), nil
}

// List implements memory_list_sessions.
func (m *MemoryActions) List(ctx context.Context, _ *auth.Client, params map[string]any) (Result, error) {
	return JSON(map[string]any{
		"status":   "success",
		"sessions": m.store.Sessions(),
	}), nil
}

// Delete implements memory_delete_session. With "key" set only that entry is
// removed, otherwise the whole session.
func (m *MemoryActions) Delete(ctx context.Context, _ *auth.Client, params map[string]any) (Result, error) {
	sessionID, errRes, ok := requireSession("memory_delete_session", params)
	if !ok {
		return errRes, nil
	}
	key := StringParam(params, "key")
	if !m.store.Delete(sessionID, key) {
		return ErrorResult(http.StatusNotFound,
			fmt.Sprintf("Sesión '%s' no encontrada.", sessionID)), nil
	}
	return JSON(map[string]any{
		"status":     "success",
		"session_id": sessionID,
		"deleted":    true,
	}), nil
}

// Export implements memory_export_session. format=json (default) returns a
// structured payload; format=csv returns CSV text, which the dispatcher
// serves as a text/csv attachment.
func (m *MemoryActions) Export(ctx context.Context, _ *auth.Client, params map[string]any) (Result, error) {
	sessionID, errRes, ok := requireSession("memory_export_session", params)
	if !ok {
		return errRes, nil
	}
	format := strings.ToLower(StringParam(params, "format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		return ErrorResult(http.StatusBadRequest,
			"Formato de exportación no válido. Use 'json' o 'csv'."), nil
	}

	rows := m.store.export(sessionID)
	if rows == nil {
		return ErrorResult(http.StatusNotFound,
			fmt.Sprintf("Sesión '%s' no encontrada.", sessionID)), nil
	}

	if format == "csv" {
		text, err := rowsToCSV(rows)
		if err != nil {
			return Result{}, err
		}
		return CSV(text), nil
	}

	items := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		items = append(items, map[string]any{
			"SessionID": r.SessionID,
			"Clave":     r.Key,
			"Valor":     r.Value,
			"Timestamp": r.Timestamp.Format(time.RFC3339),
		})
	}
	return JSON(map[string]any{
		"status":     "success",
		"session_id": sessionID,
		"format":     "json",
		"items":      items,
		"total":      len(items),
	}), nil
}

// rowsToCSV renders export rows with the canonical column set. Non-string
// values are JSON-encoded into the Valor column.
func rowsToCSV(rows []exportRow) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write([]string{"SessionID", "Clave", "Valor", "Timestamp"}); err != nil {
		return "", err
	}
	for _, r := range rows {
		val, err := valueToCell(r.Value)
		if err != nil {
			return "", err
		}
		if err := w.Write([]string{r.SessionID, r.Key, val, r.Timestamp.Format(time.RFC3339)}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}

func valueToCell(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}
