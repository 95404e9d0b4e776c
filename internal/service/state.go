// Package service holds the node's application services: the sinks that
// project committed receipts into read models, the bus and alerts, and the
// query and submission services the HTTP layer calls.
package service

import (
	"github.com/alanyoungcy/tiqet/internal/chain"
)

// StateViewer gives exclusive, short-lived access to the protocol state.
// *chain.Host implements it.
type StateViewer interface {
	View(fn func(s *chain.State))
}
