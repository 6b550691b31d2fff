package hnet

import (
	"github.com/baiyanhuang/hnet/constant"
	"github.com/baiyanhuang/hnet/errors"
	"github.com/baiyanhuang/hnet/socket"
	"github.com/baiyanhuang/hnet/statistics"
)

// RPCDef binds a client-chosen id to an expression evaluated in the
// remote process, together with the canonical encodings of the types
// that will be sent and received for it.
type RPCDef struct {
	ID         uint32
	Expr       string
	InputType  []byte
	OutputType []byte
}

// initSession runs the client side of the handshake on a freshly
// connected socket: the version word, then one DEFEXPR per definition,
// each acknowledged individually by a status byte. A FAIL status
// carries the server's message and aborts the whole session.
func initSession(c *socket.Conn, defs []RPCDef) error {
	if err := c.SendUint32(constant.Version); err != nil {
		return err
	}
	for _, def := range defs {
		if err := c.SendUint8(constant.CmdDefExpr); err != nil {
			return err
		}
		if err := c.SendUint32(def.ID); err != nil {
			return err
		}
		if err := c.SendString(def.Expr); err != nil {
			return err
		}
		if err := c.SendBytes(def.InputType); err != nil {
			return err
		}
		if err := c.SendBytes(def.OutputType); err != nil {
			return err
		}

		result, err := c.RecvUint8()
		if err != nil {
			return err
		}
		if result == constant.ResultFail {
			msg, err := c.RecvString()
			if err != nil {
				return err
			}
			return &errors.HandshakeError{ID: def.ID, Expr: def.Expr, Msg: msg}
		}
	}
	statistics.Count("client.handshakes")
	return nil
}

// defSet validates ids across one session's definitions.
type defSet struct {
	defs []RPCDef
	ids  map[uint32]struct{}
}

func (ds *defSet) add(def RPCDef) error {
	if def.ID == 0 {
		return errors.ErrZeroID
	}
	if ds.ids == nil {
		ds.ids = make(map[uint32]struct{})
	}
	if _, dup := ds.ids[def.ID]; dup {
		return errors.ErrDuplicateID
	}
	ds.ids[def.ID] = struct{}{}
	ds.defs = append(ds.defs, def)
	return nil
}
