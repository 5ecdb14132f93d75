// SPDX-License-Identifier: BSD-3-Clause

// Package process bridges a service.Service into an oversight.ChildProcess,
// so the embedded bus server and the Controller Supervisor can sit in the
// same supervision tree as any other long-running component.
package process

import (
	"context"
	"fmt"

	"cirello.io/oversight/v2"
	"github.com/nats-io/nats.go"

	"github.com/cryopilot/adrctl/service"
)

// New wraps s as an oversight.ChildProcess bound to ipcConn. Panics inside
// Run are recovered and converted to an error naming the service, rather
// than crashing the whole supervision tree.
func New(s service.Service, ipcConn nats.InProcessConnProvider) oversight.ChildProcess {
	return func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s panicked: %v", s.Name(), r)
			}
		}()
		return s.Run(ctx, ipcConn)
	}
}
