package hnet

import (
	"net"

	"github.com/baiyanhuang/hnet/errors"
	"github.com/baiyanhuang/hnet/models"
	"github.com/baiyanhuang/hnet/socket"
	"github.com/mdlayher/vsock"
	"golang.org/x/sys/unix"
)

// dialAddr opens a connected stream socket for addr.
func dialAddr(cfg *Config, addr models.Addr) (*socket.Conn, error) {
	switch ad := addr.(type) {
	case *models.HostAddr:
		var local *models.HostAddr
		if cfg != nil {
			local = cfg.LocalAddr
		}
		return connectHost(local, ad.Host, ad.Port)
	case *models.UnixAddr:
		return connectUnix(ad.Path)
	case *models.VSockAddr:
		return connectVSock(ad)
	default:
		return nil, errors.New("unsupported address type")
	}
}

// connectHost resolves host and port and tries each candidate address
// until one connects.
func connectHost(local *models.HostAddr, host, port string) (*socket.Conn, error) {
	pnum, err := net.LookupPort("tcp", port)
	if err != nil {
		return nil, &errors.AddrError{Kind: errors.AddrUnknownService, Host: host, Port: port, Err: err}
	}
	ips, err := lookupHost(host, port)
	if err != nil {
		return nil, err
	}

	var localIPs []net.IP
	if local != nil {
		localIPs, err = lookupHost(local.Host, local.Port)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for _, ip := range ips {
		fam := unix.AF_INET
		if ip.To4() == nil {
			fam = unix.AF_INET6
		}
		fd, err := unix.Socket(fam, unix.SOCK_STREAM, 0)
		if err != nil {
			lastErr = err
			continue
		}
		if local != nil {
			lip, ok := matchFamily(localIPs, ip)
			if !ok {
				unix.Close(fd)
				continue
			}
			lport, err := net.LookupPort("tcp", local.Port)
			if err != nil {
				lport = 0
			}
			if err := unix.Bind(fd, sockaddrFor(lip, lport)); err != nil {
				unix.Close(fd)
				lastErr = err
				continue
			}
		}
		if err := unix.Connect(fd, sockaddrFor(ip, pnum)); err != nil {
			unix.Close(fd)
			lastErr = err
			continue
		}
		return socket.New(fd), nil
	}
	if lastErr == nil {
		lastErr = errors.New("no usable addresses")
	}
	return nil, &errors.ConnectError{Addr: host + ":" + port, Err: lastErr}
}

func lookupHost(host, port string) ([]net.IP, error) {
	if host == "" {
		return []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}, nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		kind := errors.AddrPermanent
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			switch {
			case dnsErr.IsTemporary:
				kind = errors.AddrTemporary
			case dnsErr.IsNotFound:
				kind = errors.AddrNoName
			}
		}
		return nil, &errors.AddrError{Kind: kind, Host: host, Port: port, Err: err}
	}
	return ips, nil
}

func matchFamily(candidates []net.IP, ip net.IP) (net.IP, bool) {
	want4 := ip.To4() != nil
	for _, c := range candidates {
		if (c.To4() != nil) == want4 {
			return c, true
		}
	}
	return nil, false
}

func sockaddrFor(ip net.IP, port int) unix.Sockaddr {
	if v4 := ip.To4(); v4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], v4)
		return sa
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa
}

func connectUnix(path string) (*socket.Conn, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, &errors.IOError{Op: "create", Err: err}
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, &errors.ConnectError{Addr: path, Err: err}
	}
	return socket.New(fd), nil
}

// connectVSock dials through the vsock package and takes over the
// descriptor, since the session layer drives the fd directly.
func connectVSock(ad *models.VSockAddr) (*socket.Conn, error) {
	vc, err := vsock.Dial(ad.ContextID, ad.Port, nil)
	if err != nil {
		return nil, &errors.ConnectError{Addr: ad.GetAddr(), Err: err}
	}
	raw, err := vc.SyscallConn()
	if err != nil {
		vc.Close()
		return nil, &errors.ConnectError{Addr: ad.GetAddr(), Err: err}
	}
	fd := -1
	var dupErr error
	ctlErr := raw.Control(func(f uintptr) {
		fd, dupErr = unix.Dup(int(f))
	})
	vc.Close()
	if ctlErr != nil {
		return nil, &errors.ConnectError{Addr: ad.GetAddr(), Err: ctlErr}
	}
	if dupErr != nil {
		return nil, &errors.ConnectError{Addr: ad.GetAddr(), Err: dupErr}
	}
	return socket.New(fd), nil
}
