// Package filtertest provides scripted filters, completion captures and
// violation recorders for testing filter composites.
//
//	log := &filtertest.Log{}
//	a := filtertest.New("a", filtertest.Script{Delay: 5 * time.Millisecond, Log: log})
//	b := filtertest.New("b", filtertest.Script{Log: log})
//
//	capture := filtertest.NewCapture()
//	filter.Invoke(ctx, filter.NewPipeline("p", a, b), filtertest.Reports(t, "r1"), capture.Done)
//	res := capture.Wait(t, time.Second)
//	// log.Events() == [a:start a:done b:start b:done]
package filtertest
