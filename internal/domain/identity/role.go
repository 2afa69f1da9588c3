package identity

import "strings"

// Role es un enum cerrado. Nada de branching sobre strings sueltos:
// todo lo que entra por HTTP pasa por ParseRole.
type Role string

const (
	RolePatient      Role = "patient"
	RoleDoctor       Role = "doctor"
	RoleLabAssistant Role = "lab_assistant"
	RoleAdmin        Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RolePatient:
		return RolePatient, true
	case RoleDoctor:
		return RoleDoctor, true
	case RoleLabAssistant:
		return RoleLabAssistant, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// IsProvider indica si el rol puede pedir acceso a registros de un paciente.
func (r Role) IsProvider() bool {
	return r == RoleDoctor || r == RoleLabAssistant
}

func (r Role) IsPatient() bool {
	return r == RolePatient
}
