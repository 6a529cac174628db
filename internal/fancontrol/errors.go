package fancontrol

import "fmt"

// WriteOp identifies which hardware write failed.
type WriteOp string

const (
	OpExport   WriteOp = "export"
	OpPeriod   WriteOp = "period"
	OpPolarity WriteOp = "polarity"
	OpEnable   WriteOp = "enable"
	OpDuty     WriteOp = "duty_cycle"
	OpCooling  WriteOp = "cooling_level"
	OpUnbind   WriteOp = "unbind"
	OpGovernor WriteOp = "governor"
)

// WriteError is a failed best-effort hardware write. Callers log and
// continue; Op lets them (and tests) tell failure kinds apart instead of
// relying on catch-all suppression.
type WriteError struct {
	Op   WriteOp
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("fancontrol: %s write %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
