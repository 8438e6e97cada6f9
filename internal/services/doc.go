// Package services provides the orchestration layer between HTTP transport
// and the license core: LicenseService wraps the lifecycle engine for the
// activation protocol, AdminService implements key lifecycle management on
// the shared record store.
package services
