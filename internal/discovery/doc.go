// Package discovery advertises the thing server over mDNS as a
// _webthing._tcp service so gateways on the local network can find it.
package discovery
