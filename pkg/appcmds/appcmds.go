// Package appcmds is the recovered reference application command set
// (command ids 200-204: init/start/data/stop/deinit) that
// examples/GSBP_DevDummy__PC_Cpp exercises the protocol with. It is
// not part of GSBP itself — application command payload schemas are
// owned by whatever uses the protocol — but cmd/gsbp-host and
// cmd/gsbp-devicesim share it so the two binaries agree on a wire
// format without either hardcoding the other's internals.
package appcmds

import "github.com/fxamacker/cbor/v2"

const (
	CmdAppInit  uint16 = 200
	CmdAppStart uint16 = 201
	CmdAppData  uint16 = 202
	CmdAppStop  uint16 = 203
	CmdAppDeinit uint16 = 204
)

// Init configures the simulator's periodic data emission: DataSize
// int16 samples, one batch every DataPeriodMS milliseconds, each
// batch incremented by Increment over the last.
type Init struct {
	DataPeriodMS uint32 `cbor:"period_ms"`
	DataSize     uint16 `cbor:"size"`
	Increment    int16  `cbor:"increment"`
}

func (i Init) Marshal() ([]byte, error) { return cbor.Marshal(i) }

func UnmarshalInit(payload []byte) (Init, error) {
	var i Init
	err := cbor.Unmarshal(payload, &i)
	return i, err
}
