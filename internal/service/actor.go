package service

// Actor is the authenticated identity every command runs as. It is resolved
// server-side from the JWT, never from client-supplied fields.
type Actor struct {
	EmpID int
	Role  string
}
