/*
Package migration rewrites the legacy users and dashboard tables into the
single-table layout.

A run has three phases, executed in order after the destination table is
ensured:

  - users: every legacy user becomes a profile row plus its email
    reservation row
  - global_stats: the legacy row with id "stats" (or a zeroed default)
    becomes DASHBOARD#GLOBAL/STATS
  - user_stats: every other legacy dashboard row becomes
    USER#<id>/DASHBOARD#STATS

Rows are written unconditionally, so running the job again over the same
legacy data produces the same destination rows. Timestamps missing from a
legacy row are stamped with the run time once; later runs reuse the value
already stored in the destination. The first error aborts the
run; legacy tables are only ever read.

	job := migration.NewJob(legacyReader, store, migration.Config{
	    UsersTable:     "svc-users-dev",
	    DashboardTable: "svc-dashboard-dev",
	}, migration.WithLogger(logger))
	report, err := job.Run(ctx)
*/
package migration
