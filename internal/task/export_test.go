package task

import "time"

func (d *Dispatcher) SetNow(now func() time.Time) {
	d.now = now
}
