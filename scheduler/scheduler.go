// Package scheduler runs the periodic work of the backend:
// - the fixed-delay price refresh loop (refresh.go)
// - housekeeping jobs on gocron: history retention and subscriber stats (jobs.go)
package scheduler
