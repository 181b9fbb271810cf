package domain

import "strings"

// Portal-side processing states for an uploaded file.
const (
	StateLoaded    = "CARGADO"
	StateInProcess = "EN_PROCESO"
)

// Message is one validation message attached to a file result. The portal
// echoes them verbatim, including server-side temp paths inside descriptions.
type Message struct {
	Codigo      string `json:"codigo"`
	Descripcion string `json:"descripcion"`
	Tipo        string `json:"tipo"`
	IDArchivo   string `json:"idArchivo"`
}

// SanitizedDescription reduces any filesystem path embedded in the
// description to its base name. Server temp paths are not meaningful to the
// reader. Idempotent.
func (m Message) SanitizedDescription() string {
	words := strings.Split(m.Descripcion, " ")
	for i, word := range words {
		if strings.ContainsAny(word, `/\`) {
			words[i] = word[strings.LastIndexAny(word, `/\`)+1:]
		}
	}
	return strings.Join(words, " ")
}

// FileResult is the per-file slice of a load status snapshot.
type FileResult struct {
	Codigo      string    `json:"codigo"`
	Estado      string    `json:"estado"`
	Extension   string    `json:"extension"`
	FechaCargue string    `json:"fechaCargue"`
	ID          string    `json:"id"`
	IDTipo      string    `json:"idTipo"`
	Mensajes    []Message `json:"mensajes"`
	Nombre      string    `json:"nombre"`
}

func (f FileResult) Loaded() bool {
	return f.Estado == StateLoaded
}

// Clean reports whether the file carries no validation messages. Any message
// present, whatever its tipo, counts against the upload.
func (f FileResult) Clean() bool {
	return len(f.Mensajes) == 0
}

// FailureReason joins every message as "<codigo>. <descripcion>" with paths
// sanitized, in original order.
func (f FileResult) FailureReason() string {
	parts := make([]string, 0, len(f.Mensajes))
	for _, m := range f.Mensajes {
		parts = append(parts, m.Codigo+". "+m.SanitizedDescription())
	}
	return strings.Join(parts, "| ")
}

// LoadStatus is one snapshot of the findLoad endpoint for a transaction id.
// The engine keeps only the latest snapshot per attempt.
type LoadStatus struct {
	Archivos           []FileResult `json:"archivos"`
	Cantidad           int          `json:"cantidad"`
	Email              string       `json:"email"`
	Estado             string       `json:"estado"`
	EstadoValidaciones string       `json:"estadoValidaciones"`
	Fecha              string       `json:"fecha"`
	ID                 string       `json:"id"`
	Nombres            []string     `json:"nombres"`
	Organizacion       string       `json:"organizacion"`
	Usuario            string       `json:"usuario"`
}

func (s *LoadStatus) FirstFile() (FileResult, bool) {
	if s == nil || len(s.Archivos) == 0 {
		return FileResult{}, false
	}
	return s.Archivos[0], true
}

// EffectiveState is the first file's state when file results exist, otherwise
// the root state of the snapshot.
func (s *LoadStatus) EffectiveState() string {
	if file, ok := s.FirstFile(); ok {
		return file.Estado
	}
	if s == nil {
		return ""
	}
	return s.Estado
}

// Done reports whether the snapshot is terminal: the first file result
// reached the loaded state.
func (s *LoadStatus) Done() bool {
	file, ok := s.FirstFile()
	return ok && file.Loaded()
}

func (s *LoadStatus) CargueID() string {
	if s == nil {
		return ""
	}
	return s.ID
}
