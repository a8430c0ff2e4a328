// Package services holds pieces shared by the API clients, most notably
// the error classification the cleanup engine uses to decide whether a
// collaborator should be treated as absent for the rest of a pass.
package services
