package results

// Sub-types an Rf1350 message can carry.
const (
	Rf1350PaymentRequest = "Anmodning om utbetaling"
	Rf1350Receipt        = "Automatisk kvittering på innsendt søknad"
	Rf1350Application    = "Overføring av mottatt søknad"
)

// Guarantee types for Loyvegaranti.
const (
	LoyvegarantiNew    = "Løyvegaranti"
	LoyvegarantiChange = "EndringAvLøyvegaranti"
	LoyvegarantiEnd    = "OpphørAvLøyvegaranti"
)

// Rf1350 is extracted from regional grant administration notifications.
type Rf1350 struct {
	OrganizationNumber Digits `json:"OrganizationNumber"`
	ProjectName        string `json:"ProjectName"`
	ProjectOwner       string `json:"ProjectOwner"`
	ProjectNumber      string `json:"ProjectNumber"`
	ReferenceNumber    string `json:"ReferenceNumber"`
	Type               string `json:"Type"`
}

func (Rf1350) Kind() Kind { return KindRf1350 }

func (Rf1350) Schema() string {
	return `{
  "OrganizationNumber": "Er 9 siffer langt og er organisasjonsnummeret som står bak Org.nr:. Kan inneholde mellomrom, bindestrek eller punktum",
  "ProjectName": "Ligger alltid etter Prosjektnavn:",
  "ProjectOwner": "Ligger alltid etter Prosjekteier:",
  "ProjectNumber": "Er på formatet: 00-0000",
  "ReferenceNumber": "Er på formatet: 0000-0000",
  "Type": "Skal alltid være en av følgende typer og du må selv finne ut hvilken som stemmer ut fra input: 'Anmodning om utbetaling', 'Automatisk kvittering på innsendt søknad', 'Overføring av mottatt søknad'"
}`
}

// Loyvegaranti is extracted from license guarantee notifications.
type Loyvegaranti struct {
	Description        string `json:"Description"`
	OrganizationName   string `json:"OrganizationName"`
	OrganizationNumber Digits `json:"OrganizationNumber"`
	Title              string `json:"Title"`
	Type               string `json:"Type"`
}

func (Loyvegaranti) Kind() Kind { return KindLoyvegaranti }

func (Loyvegaranti) Schema() string {
	return `{
  "Description": "Er en kort beskrivelse av innholdet",
  "OrganizationName": "Er alltid i store bokstaver. Og står før 'Org.nr'",
  "OrganizationNumber": "Er 9 siffer langt og kan inneholde mellomrom",
  "Title": "Er en hensiksmessig tittel for innholdet",
  "Type": "Skal være en av: 'Løyvegaranti', 'EndringAvLøyvegaranti', 'OpphørAvLøyvegaranti'"
}`
}

// TypeTitle returns the archive title prefix for the guarantee type.
func (l Loyvegaranti) TypeTitle() (string, bool) {
	switch l.Type {
	case LoyvegarantiNew:
		return "Løyvegaranti", true
	case LoyvegarantiChange:
		return "Endring av løyvegaranti", true
	case LoyvegarantiEnd:
		return "Opphør av løyvegaranti", true
	default:
		return "", false
	}
}

// Pengetransporten is extracted from invoice related messages.
type Pengetransporten struct {
	Attachments      []string `json:"Attachments"`
	Description      string   `json:"Description"`
	IsInvoiceRelated bool     `json:"IsInvoiceRelated"`
}

func (Pengetransporten) Kind() Kind { return KindPengetransporten }

func (Pengetransporten) Schema() string {
	return `{
  "Attachments": "Liste med navn på vedlegg som er nevnt i innholdet",
  "Description": "Er en kort begrunnelse for om innholdet gjelder faktura",
  "IsInvoiceRelated": "true dersom innholdet gjelder faktura, kreditnota, debetnota, purring eller betaling"
}`
}

// Innsyn is extracted from access requests.
type Innsyn struct {
	Description string `json:"Description"`
	IsInnsyn    bool   `json:"IsInnsyn"`
}

func (Innsyn) Kind() Kind { return KindInnsyn }

func (Innsyn) Schema() string {
	return `{
  "Description": "Du sier om innholdet er en henvendelse om innsyn i et eller flere dokumenter i arkivet",
  "IsInnsyn": "Du skal være minst 90% sikker på at innholdet er en henvendelse om innsyn i et eller flere dokumenter i arkivet før du setter IsInnsyn = true"
}`
}

// General is a broad extraction used by case number lookups and ad hoc probes.
type General struct {
	CaseNumber              string   `json:"CaseNumber"`
	ContainsSensitiveData   bool     `json:"ContainsSensitiveData"`
	SensitiveDataCategories []string `json:"SensitiveDataCategories"`
	Description             string   `json:"Description"`
	DocumentNumber          string   `json:"DocumentNumber"`
	OrganizationNumber      Digits   `json:"OrganizationNumber"`
	ProjectNumber           string   `json:"ProjectNumber"`
	Title                   string   `json:"Title"`
}

func (General) Kind() Kind { return KindGeneral }

func (General) Schema() string {
	return `{
  "CaseNumber": "Er på formatet: 00/00000",
  "ContainsSensitiveData": "Skal settes til true dersom input inneholder sensitiv informasjon. Sensitiv informasjon er blant annet: Fødselsnummer, Bankkontonummer, Personnummer, Passord, Kredittkortnummer, BankID, diagnoser, helsedata",
  "SensitiveDataCategories": "Er en liste med kategorier for sensitiv informasjon. Kategoriene er beskrevet i ContainsSensitiveData",
  "Description": "Er en kort beskrivelse av innholdet",
  "DocumentNumber": "Er på formatet: 00/00000-0",
  "OrganizationNumber": "Er 9 siffer langt og kan inneholde mellomrom",
  "ProjectNumber": "Er på formatet: 00-0000",
  "Title": "Er en hensiksmessig tittel for innholdet"
}`
}

type FunFact struct {
	Message string `json:"Message"`
}

func (FunFact) Kind() Kind { return KindFunFact }

func (FunFact) Schema() string {
	return `{
  "Message": "Skal være en hyggelig, veldig veldig kort og kreativ fun-fact om arkivering. Maks en linje. Alt MÅ være eksisterende og riktige fakta. Aldri finn opp facts!"
}`
}
