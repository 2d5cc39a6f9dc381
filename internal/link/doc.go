// Package link builds web URLs and native deep links for work orders and
// approvals, and sanitizes outbound links against an allow-list of trusted hosts.
package link
