package hnet

import "github.com/baiyanhuang/hnet/models"

// Config carries session options shared by both client kinds.
type Config struct {
	// LocalAddr optionally binds the outgoing TCP socket before
	// connecting. Port "0" picks an ephemeral port.
	LocalAddr *models.HostAddr
}
