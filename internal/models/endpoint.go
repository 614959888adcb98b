package models

// Endpoint is the way a client reaches a server. It is one of
// RemoteEndpoint, PackageEndpoint or NoEndpoint.
type Endpoint interface {
	endpoint()
}

// RemoteEndpoint is a server reachable over the network
type RemoteEndpoint struct {
	Remote Remote
}

// PackageEndpoint is a server launched locally from a package
type PackageEndpoint struct {
	Package Package
}

// NoEndpoint is a server that declares neither remotes nor packages
type NoEndpoint struct{}

func (RemoteEndpoint) endpoint()  {}
func (PackageEndpoint) endpoint() {}
func (NoEndpoint) endpoint()      {}

// EndpointOf returns the preferred endpoint of s: the first remote, then
// the first package.
func EndpointOf(s ServerEntry) Endpoint {
	if len(s.Remotes) > 0 {
		return RemoteEndpoint{Remote: s.Remotes[0]}
	}
	if len(s.Packages) > 0 {
		return PackageEndpoint{Package: s.Packages[0]}
	}
	return NoEndpoint{}
}
