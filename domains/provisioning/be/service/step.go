package service

import "fmt"

// Step is one ordered unit of work in the provisioning pipeline. The set is
// closed: lookups on an unknown value are errors, never silent fallbacks.
type Step int

const (
	StepInit Step = iota
	StepCopyDatabase
	StepPrimaryAuth
	StepPrimaryAdminUpdate
	StepSecondaryUpsertTenant
	StepSecondaryUpsertUser
	StepBridgeMetadata
	StepFinalize
)

// FirstStep and LastStep bound the fixed execution order.
const (
	FirstStep = StepInit
	LastStep  = StepFinalize
)

var stepNames = [...]string{
	StepInit:                  "INIT",
	StepCopyDatabase:          "COPY_DATABASE",
	StepPrimaryAuth:           "PRIMARY_AUTH",
	StepPrimaryAdminUpdate:    "PRIMARY_ADMIN_UPDATE",
	StepSecondaryUpsertTenant: "SECONDARY_UPSERT_TENANT",
	StepSecondaryUpsertUser:   "SECONDARY_UPSERT_USER",
	StepBridgeMetadata:        "BRIDGE_METADATA",
	StepFinalize:              "FINALIZE",
}

// Base progress percent reported when the step is about to run. Values must be
// strictly increasing so the time-based nudge in the status reporter can cap
// at the next step's base without ever regressing.
var stepBasePercent = [...]int{
	StepInit:                  2,
	StepCopyDatabase:          10,
	StepPrimaryAuth:           45,
	StepPrimaryAdminUpdate:    55,
	StepSecondaryUpsertTenant: 65,
	StepSecondaryUpsertUser:   75,
	StepBridgeMetadata:        85,
	StepFinalize:              95,
}

var stepDescriptions = map[string][len(stepNames)]string{
	"en": {
		StepInit:                  "Preparing your workspace",
		StepCopyDatabase:          "Creating your dedicated database",
		StepPrimaryAuth:           "Verifying administrator access",
		StepPrimaryAdminUpdate:    "Configuring your administrator account",
		StepSecondaryUpsertTenant: "Registering your company",
		StepSecondaryUpsertUser:   "Registering your billing contact",
		StepBridgeMetadata:        "Linking billing and workspace records",
		StepFinalize:              "Finishing up",
	},
	"es": {
		StepInit:                  "Preparando su espacio de trabajo",
		StepCopyDatabase:          "Creando su base de datos dedicada",
		StepPrimaryAuth:           "Verificando el acceso de administrador",
		StepPrimaryAdminUpdate:    "Configurando su cuenta de administrador",
		StepSecondaryUpsertTenant: "Registrando su empresa",
		StepSecondaryUpsertUser:   "Registrando su contacto de facturacion",
		StepBridgeMetadata:        "Enlazando registros de facturacion",
		StepFinalize:              "Finalizando",
	},
}

// Valid reports whether s is a member of the closed step set.
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("STEP(%d)", int(s))
	}
	return stepNames[s]
}

// ParseStep converts a stored name back into a Step.
func ParseStep(raw string) (Step, error) {
	for i, name := range stepNames {
		if name == raw {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown provisioning step %q", raw)
}

// Next returns the step after s; ok is false when s is the final step.
func (s Step) Next() (next Step, ok bool) {
	if !s.Valid() || s == LastStep {
		return s, false
	}
	return s + 1, true
}

// BasePercent is the fixed progress weight reported while s is current.
func (s Step) BasePercent() int {
	if !s.Valid() {
		return 0
	}
	return stepBasePercent[s]
}

// NextBasePercent is the base percent of the following step, or 100 for the
// final step. The status reporter's nudge must stay strictly below it.
func (s Step) NextBasePercent() int {
	next, ok := s.Next()
	if !ok {
		return 100
	}
	return next.BasePercent()
}

// Description returns the human-readable step text for the locale, falling
// back to English for unknown locales.
func (s Step) Description(locale string) string {
	if !s.Valid() {
		return ""
	}
	if texts, ok := stepDescriptions[locale]; ok {
		return texts[s]
	}
	return stepDescriptions["en"][s]
}

// Steps returns the full ordered sequence.
func Steps() []Step {
	out := make([]Step, 0, int(LastStep)+1)
	for s := FirstStep; s <= LastStep; s++ {
		out = append(out, s)
	}
	return out
}
