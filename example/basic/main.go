package main

import (
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/yudhasubki/preemption"
	"github.com/yudhasubki/preemption/pkg/arch"
)

func main() {
	sim := arch.NewSim(runtime.NumCPU() + 1)
	control := preemption.New(preemption.WithBackend(sim.Core(0)))

	guard := control.Disable()
	log.Printf("preemption disabled on core 0, guard %s", guard.ID())

	time.Sleep(time.Second)

	var wg sync.WaitGroup
	for i := 1; i < sim.NumCores(); i++ {
		wg.Add(1)
		go func(core *arch.SimCore) {
			defer wg.Done()
			log.Printf("worker running on core %d, masked=%v", core.ID(), core.Masked())
			time.Sleep(100 * time.Millisecond)
		}(sim.Core(i))
	}
	wg.Wait()

	err := control.Enable(guard)
	if err != nil {
		log.Fatalf("enable preemption: %v", err)
	}
	log.Printf("preemption enabled after %d cores ran, core 0 masked=%v", sim.NumCores()-1, sim.Core(0).Masked())

	// workers on other cores now take turns in the critical section
	for i := 1; i < sim.NumCores(); i++ {
		wg.Add(1)
		go func(core *arch.SimCore) {
			defer wg.Done()
			guard := control.DisableOn(core)
			defer guard.Release()

			log.Printf("core %d in critical section, held by %s", core.ID(), control.Status().Holder.String)
		}(sim.Core(i))
	}
	wg.Wait()
}
