package domain

import "time"

// Human-facing statuses recorded on the run ledger. The wording is what the
// operations team reads in the control sheet, so it stays in Spanish.
const (
	StatusUploaded     = "Cargado en Mutual Ser"
	StatusUploadFailed = "Factura NO CARGADA en Mutual Ser"
	StatusFileMissing  = "Archivo no encontrado al intentar ser enviado a Mutualser"
)

// UploadJob is the unit of work handed to the engine by the intake
// collaborator: a previously assembled archive plus its invoice number.
type UploadJob struct {
	InvoiceID  string    `json:"invoice_id"`
	FilePath   string    `json:"file_path"`
	ReceivedAt time.Time `json:"received_at"`
}
