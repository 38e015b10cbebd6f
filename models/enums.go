package models

type DocumentStatus string

const (
	DocumentStatusImported DocumentStatus = "IMPORTED"
	DocumentStatusRevised  DocumentStatus = "REVISED"
	DocumentStatusExported DocumentStatus = "EXPORTED"
)

func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusImported, DocumentStatusRevised, DocumentStatusExported:
		return true
	}
	return false
}
