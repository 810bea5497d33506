// Package model defines the core data structures for onionharvest.
//
// This package contains the domain types shared across the application:
// targets, fetched documents, processing results, and run summaries.
// It has no dependencies on other internal packages, making it safe to
// import from anywhere without circular dependency concerns.
package model
