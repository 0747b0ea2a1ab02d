// Package sdb implements the event bridge over the rpmsg-sdb kernel
// driver (/dev/rpmsg-sdb) using eventfds, ioctls and mmap.
package sdb

// DefaultDevice is the rpmsg-sdb character device.
const DefaultDevice = "/dev/rpmsg-sdb"
