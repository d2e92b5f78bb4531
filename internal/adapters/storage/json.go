package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alejandrodnm/predictbot/internal/domain"
)

// JSONLedgerStore guarda el ledger como un único documento JSON.
// Cada save escribe un fichero temporal y lo renombra: un crash a mitad de
// escritura deja el ledger anterior intacto.
type JSONLedgerStore struct {
	path string
}

// NewJSONLedgerStore crea el store sobre la ruta dada. El fichero puede no existir.
func NewJSONLedgerStore(path string) *JSONLedgerStore {
	return &JSONLedgerStore{path: path}
}

// Path devuelve la ruta del fichero.
func (s *JSONLedgerStore) Path() string { return s.path }

// LoadLedger implementa ports.LedgerStore.
// Fichero ausente → found=false. Fichero vacío, JSON inválido o sin
// capital/created_at → ErrCorruptLedger.
func (s *JSONLedgerStore) LoadLedger(_ context.Context) (*domain.Ledger, bool, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("storage.LoadLedger: read %q: %w", s.path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, false, fmt.Errorf("storage.LoadLedger: %q: %w: empty file", s.path, ErrCorruptLedger)
	}
	if err := requireKeys(b, "capital", "created_at"); err != nil {
		return nil, false, fmt.Errorf("storage.LoadLedger: %q: %w: %v", s.path, ErrCorruptLedger, err)
	}

	var rec ledgerRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, false, fmt.Errorf("storage.LoadLedger: %q: %w: %v", s.path, ErrCorruptLedger, err)
	}
	l, err := fromLedgerRecord(rec)
	if err != nil {
		return nil, false, fmt.Errorf("storage.LoadLedger: %q: %w: %v", s.path, ErrCorruptLedger, err)
	}
	return l, true, nil
}

// requireKeys comprueba que b es un objeto JSON con todas las claves dadas.
// `null` y `{}` no son ledgers.
func requireKeys(b []byte, keys ...string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return fmt.Errorf("missing %q", k)
		}
	}
	return nil
}

// SaveLedger implementa ports.LedgerStore.
func (s *JSONLedgerStore) SaveLedger(_ context.Context, l *domain.Ledger) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage.SaveLedger: mkdir: %w", err)
		}
	}

	b, err := json.MarshalIndent(toLedgerRecord(l), "", "  ")
	if err != nil {
		return fmt.Errorf("storage.SaveLedger: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("storage.SaveLedger: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("storage.SaveLedger: rename: %w", err)
	}
	return nil
}

// maxDecisionLine acota el tamaño de una línea del log (rationales largos).
const maxDecisionLine = 1 << 20

// JSONLDecisionLog es el decision log append-only en JSON Lines.
type JSONLDecisionLog struct {
	path string
}

// NewJSONLDecisionLog crea el log sobre la ruta dada.
func NewJSONLDecisionLog(path string) *JSONLDecisionLog {
	return &JSONLDecisionLog{path: path}
}

// Path devuelve la ruta del fichero.
func (d *JSONLDecisionLog) Path() string { return d.path }

// AppendDecision implementa ports.DecisionLog. Una línea por decisión.
func (d *JSONLDecisionLog) AppendDecision(_ context.Context, dec domain.Decision) error {
	b, err := json.Marshal(toDecisionRecord(dec))
	if err != nil {
		return fmt.Errorf("storage.AppendDecision: marshal: %w", err)
	}
	b = append(b, '\n')

	if dir := filepath.Dir(d.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage.AppendDecision: mkdir: %w", err)
		}
	}
	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage.AppendDecision: open: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("storage.AppendDecision: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storage.AppendDecision: close: %w", err)
	}
	return nil
}

// ReadDecisions implementa ports.DecisionLog.
// Las líneas que no se pueden parsear se saltan y se cuentan en skipped.
func (d *JSONLDecisionLog) ReadDecisions(_ context.Context) ([]domain.Decision, int, error) {
	f, err := os.Open(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("storage.ReadDecisions: open: %w", err)
	}
	defer f.Close()

	var (
		out     []domain.Decision
		skipped int
		lineNo  int
	)
	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, tooLong, rerr := readLine(r, maxDecisionLine)
		if tooLong {
			lineNo++
			skipped++
			slog.Debug("decision log: skipping oversized line", "line", lineNo, "max_bytes", maxDecisionLine)
		} else if len(line) > 0 {
			lineNo++
			if dec, ok := parseDecisionLine(line, lineNo); ok {
				out = append(out, dec)
			} else if len(bytes.TrimSpace(line)) > 0 {
				skipped++
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return out, skipped, fmt.Errorf("storage.ReadDecisions: read: %w", rerr)
		}
	}
	return out, skipped, nil
}

// parseDecisionLine devuelve ok=false para líneas en blanco o ilegibles.
func parseDecisionLine(line []byte, lineNo int) (domain.Decision, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return domain.Decision{}, false
	}

	var rec decisionRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		slog.Debug("decision log: skipping malformed line", "line", lineNo, "err", err)
		return domain.Decision{}, false
	}
	dec, err := fromDecisionRecord(rec)
	if err != nil {
		slog.Debug("decision log: skipping invalid record", "line", lineNo, "err", err)
		return domain.Decision{}, false
	}
	return dec, true
}

// readLine lee hasta '\n' inclusive. Si la línea supera limit bytes descarta
// el resto de la línea y devuelve tooLong=true; la lectura sigue en la
// siguiente. err es io.EOF al final del fichero.
func readLine(r *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > limit {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, rerr
	}
}
