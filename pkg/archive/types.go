package archive

import (
	"bytes"
	"encoding/json"
)

// Case statuses used when filtering lookups.
const (
	StatusUnderBehandling = "Under behandling"
	StatusReservert       = "Reservert"
	StatusAvsluttet       = "Avsluttet"
)

// Ref is an identifier the archive returns as either a JSON string or a number.
type Ref string

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Ref(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = Ref(n.String())
	return nil
}

func (r Ref) String() string { return string(r) }

type Person struct {
	Recno Ref    `json:"Recno,omitempty"`
	Name  string `json:"Name,omitempty"`
	Email string `json:"Email"`
}

type Category struct {
	Recno       Ref    `json:"Recno"`
	Description string `json:"Description,omitempty"`
}

type ArchiveCode struct {
	ArchiveCode  string `json:"ArchiveCode"`
	ArchiveType  string `json:"ArchiveType"`
	IsManualText bool   `json:"IsManualText,omitempty"`
	Sort         int    `json:"Sort"`
}

type Contact struct {
	ReferenceNumber Ref    `json:"ReferenceNumber,omitempty"`
	Role            string `json:"Role"`
	Name            string `json:"Name,omitempty"`
}

// File is one file in a document. Data is base64 encoded on the wire.
type File struct {
	Format        string `json:"Format"`
	Status        string `json:"Status"`
	Title         string `json:"Title"`
	Data          []byte `json:"Data"`
	VersionFormat string `json:"VersionFormat"`
}

type CaseDocument struct {
	Recno          Ref      `json:"Recno,omitempty"`
	DocumentNumber string   `json:"DocumentNumber"`
	DocumentTitle  string   `json:"DocumentTitle"`
	Category       Category `json:"Category"`
}

type Case struct {
	Recno             Ref            `json:"Recno,omitempty"`
	CaseNumber        string         `json:"CaseNumber"`
	Title             string         `json:"Title"`
	Status            string         `json:"Status"`
	ResponsiblePerson Person         `json:"ResponsiblePerson"`
	Documents         []CaseDocument `json:"Documents,omitempty"`
}

type Document struct {
	Recno          Ref       `json:"Recno,omitempty"`
	DocumentNumber string    `json:"DocumentNumber"`
	Title          string    `json:"Title"`
	CaseNumber     string    `json:"CaseNumber,omitempty"`
	Category       Category  `json:"Category"`
	Contacts       []Contact `json:"Contacts,omitempty"`
}

type Project struct {
	Recno             Ref    `json:"Recno,omitempty"`
	ProjectNumber     string `json:"ProjectNumber"`
	ProjectName       string `json:"ProjectName,omitempty"`
	ResponsiblePerson Person `json:"ResponsiblePerson"`
}

type Enterprise struct {
	Recno            Ref    `json:"Recno,omitempty"`
	EnterpriseNumber Ref    `json:"EnterpriseNumber"`
	Name             string `json:"Name,omitempty"`
}

type GetCasesParams struct {
	ProjectNumber string `json:"ProjectNumber,omitempty"`
	ArchiveCode   string `json:"ArchiveCode,omitempty"`
	CaseNumber    string `json:"CaseNumber,omitempty"`
	Title         string `json:"Title,omitempty"`
}

type CreateCaseParams struct {
	AccessCode                 string        `json:"AccessCode,omitempty"`
	AccessGroup                string        `json:"AccessGroup,omitempty"`
	ArchiveCodes               []ArchiveCode `json:"ArchiveCodes"`
	CaseType                   string        `json:"CaseType,omitempty"`
	Project                    string        `json:"Project,omitempty"`
	ResponsibleEnterpriseRecno string        `json:"ResponsibleEnterpriseRecno,omitempty"`
	ResponsiblePersonEmail     string        `json:"ResponsiblePersonEmail,omitempty"`
	Status                     string        `json:"Status"`
	SubArchive                 string        `json:"SubArchive,omitempty"`
	Title                      string        `json:"Title"`
}

type UpdateCaseParams struct {
	CaseNumber string `json:"CaseNumber"`
	Status     string `json:"Status,omitempty"`
}

type GetDocumentsParams struct {
	DocumentNumber string `json:"DocumentNumber"`
}

type CreateDocumentParams struct {
	Archive                    string    `json:"Archive"`
	CaseNumber                 string    `json:"CaseNumber"`
	Category                   string    `json:"Category"`
	Contacts                   []Contact `json:"Contacts"`
	DocumentDate               string    `json:"DocumentDate"`
	Files                      []File    `json:"Files"`
	ResponsibleEnterpriseRecno string    `json:"ResponsibleEnterpriseRecno,omitempty"`
	ResponsiblePersonEmail     string    `json:"ResponsiblePersonEmail,omitempty"`
	Status                     string    `json:"Status"`
	Title                      string    `json:"Title"`
}

type GetProjectsParams struct {
	ProjectNumber string `json:"ProjectNumber"`
}

// CaseResult is returned by CreateCase and UpdateCase.
type CaseResult struct {
	Recno      Ref    `json:"Recno,omitempty"`
	CaseNumber string `json:"CaseNumber"`
}

// DocumentResult is returned by CreateDocument.
type DocumentResult struct {
	Recno          Ref    `json:"Recno,omitempty"`
	DocumentNumber string `json:"DocumentNumber"`
}

type payload struct {
	Service   string `json:"service"`
	Method    string `json:"method"`
	Parameter any    `json:"parameter"`
}
