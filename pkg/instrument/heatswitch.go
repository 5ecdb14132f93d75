// SPDX-License-Identifier: BSD-3-Clause

package instrument

import "fmt"

// HeatswitchClose commands the mechanical heat switch closed.
func (f *Facade) HeatswitchClose() error {
	return f.hs.Send("CLOSE")
}

// HeatswitchOpen commands the mechanical heat switch open.
func (f *Facade) HeatswitchOpen() error {
	return f.hs.Send("OPEN")
}

// HeatswitchIsClosed reports whether the heat switch last reported closed.
func (f *Facade) HeatswitchIsClosed() (bool, error) {
	return f.heatswitchState("CLOSED")
}

// HeatswitchIsOpened reports whether the heat switch last reported open.
func (f *Facade) HeatswitchIsOpened() (bool, error) {
	return f.heatswitchState("OPEN")
}

func (f *Facade) heatswitchState(want string) (bool, error) {
	reply, err := f.hs.Query("STATE?")
	if err != nil {
		return false, err
	}
	switch reply {
	case "CLOSED", "OPEN":
		return reply == want, nil
	default:
		return false, NewProtocolError("heatswitchState", reply, fmt.Errorf("unexpected heat switch state"))
	}
}
