package painlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Medication is either a bare name or a structured record. Both reduce to
// a canonical name, which is the only thing the pipeline keys on.
type Medication interface {
	CanonicalName() string
	isMedication()
}

type BareNameMedication string

func (m BareNameMedication) CanonicalName() string {
	return strings.TrimSpace(string(m))
}

func (BareNameMedication) isMedication() {}

type StructuredMedication struct {
	Name string `json:"name"`
	Dose string `json:"dose,omitempty"`
	Unit string `json:"unit,omitempty"`
	Rx   *bool  `json:"rx,omitempty"`
}

func (m StructuredMedication) CanonicalName() string {
	return strings.TrimSpace(m.Name)
}

func (StructuredMedication) isMedication() {}

var errMedicationShape = errors.New("medication must be a string or an object with a name")

// MedicationList decodes the mixed `string | {name: ...}` JSON array. Items
// without a usable name are dropped; order is kept.
type MedicationList []Medication

func (l *MedicationList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	result := make(MedicationList, 0, len(items))
	for _, item := range items {
		med, err := decodeMedication(item)
		if err != nil {
			return err
		}
		if med == nil || med.CanonicalName() == "" {
			continue
		}
		result = append(result, med)
	}
	*l = result
	return nil
}

func (l MedicationList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	items := make([]any, 0, len(l))
	for _, med := range l {
		switch m := med.(type) {
		case BareNameMedication:
			items = append(items, m.CanonicalName())
		case StructuredMedication:
			m.Name = m.CanonicalName()
			items = append(items, m)
		}
	}
	return json.Marshal(items)
}

// Names returns canonical names in list order, duplicates included.
func (l MedicationList) Names() []string {
	names := make([]string, 0, len(l))
	for _, med := range l {
		if name := med.CanonicalName(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func decodeMedication(raw json.RawMessage) (Medication, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '"':
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return nil, err
		}
		return BareNameMedication(name), nil
	case '{':
		var structured StructuredMedication
		if err := json.Unmarshal(trimmed, &structured); err != nil {
			return nil, err
		}
		return structured, nil
	}
	return nil, errMedicationShape
}
