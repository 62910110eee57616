// Package kproc provides the process and thread core of a teaching kernel.
//
// A single simulated CPU runs threads picked by a stride scheduler.
// Processes own an address space, a descriptor table, their threads and the
// mutexes, semaphores and condition variables those threads share, guarded
// by per-process Banker's-algorithm deadlock detectors. The sub-packages are:
//
//   - service/kernel    – syscall surface (fork, exec, wait, spawn, threads, sync)
//   - runtime/execution – process and thread control blocks
//   - service/scheduler – stride scheduling ready queue
//   - service/deadlock  – Banker's safety check
//   - service/mm        – simulated memory behind user pointers
//   - policy            – optional syscall filter
//
// Typical use through the Service facade:
//
//	srv, _ := kproc.New(kproc.WithImages(initImage, childImage))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	k := rt.Kernel()
//	pid := k.Spawn(ctx, "child")
//	code := k.Wait(ctx, pid, exitCodePtr)
package kproc
