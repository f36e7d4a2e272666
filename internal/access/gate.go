package access

// GateResult is the internal shape of a fail-closed boolean gate.
// Denials caused by backend failures carry Unavailable so outages stay
// distinguishable from genuine denials in logs and audit records,
// while the public answer remains false either way.
type GateResult struct {
	Allowed     bool
	StaffBypass bool
	Unavailable bool
	Err         error
}

func allowed() GateResult {
	return GateResult{Allowed: true}
}

func staffAllowed() GateResult {
	return GateResult{Allowed: true, StaffBypass: true}
}

func denied() GateResult {
	return GateResult{}
}

func unavailable(err error) GateResult {
	return GateResult{Unavailable: true, Err: err}
}
