package service

// ExportedRunningGuard exposes the guard to the _test package.
type ExportedRunningGuard = runningJobsGuard
