// Package detection turns a batch of detector output into a report: counts
// per pest label, one advisory per distinct label, and the treatment to show
// on the dashboard.
package detection
