// Package resilience groups the fault-tolerance building blocks used when
// calling portal partner APIs: circuit breakers that cut off a failing
// portal, and retry with exponential backoff for transient errors.
//
//	cb := circuitbreaker.New(circuitbreaker.PortalAPIConfig("zillow"))
//	out, err := cb.Execute(func() (interface{}, error) {
//	    return callPortal()
//	})
//
//	err := retry.WithBackoff(ctx, retry.PortalCallConfig(), func() error {
//	    return replayDelivery()
//	})
package resilience
