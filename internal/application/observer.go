package application

import "github.com/ericfisherdev/gatecheck/internal/domain/model"

// Observer receives counters from the application services. The metrics
// package provides the Prometheus implementation.
type Observer interface {
	CheckIn(source model.CheckInSource, status model.CheckInStatus)
	Import(imported, rejected int)
	StorageRetry(op string)
}

type nopObserver struct{}

func (nopObserver) CheckIn(model.CheckInSource, model.CheckInStatus) {}
func (nopObserver) Import(int, int) {}
func (nopObserver) StorageRetry(string) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
