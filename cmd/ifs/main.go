// Command ifs is the interactive shell for a single-image filesystem: the
// external collaborator the core (package imagefs) consumes commands from
// (spec.md §1, §6). Command parsing, help text, and log-line formatting
// live here, outside the core, mirroring how cmd/sqfs/main.go in the
// teacher repo keeps presentation (printFileInfo, showInfo) separate from
// the squashfs package it drives.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/argonfs/imagefs"
)

const usage = `ifs - single-image filesystem shell

Commands:
  mkfs <image> <n> <size>      format <image> with n descriptors and size bytes
  mount <image>                reattach to an existing image
  ls                           list the root directory
  create <name>                create an empty regular file
  link <src> <dst>             create a hard link dst -> src
  unlink <name>                remove a link, freeing the file if it was the last
  symlink <target> <name>      create a symbolic link named <name> pointing at <target>
  stat <path>                  print id, type, nlink, size, nblock
  pwd <path>                   print the canonical path to a descriptor
  truncate <path> <size>       grow (pad with '0') or shrink a regular file
  open <path>                  open a file, print its fd
  close <fd>                   close fd, performing any deferred unlink
  read <fd> <n>                read up to n bytes from fd's current offset
  write <fd> <n>                prompt for a line, trim to n bytes, write at offset
  seek <fd> <pos>               set fd's offset
  dump <image> <archive> <codec>    snapshot an image to a compressed archive
  restore <archive> <image> <codec> restore an image from a compressed archive
  help                          show this help text
  exit                          quit the shell
`

type shell struct {
	fs  *imagefs.FS
	in  *bufio.Scanner
	log *log.Logger
}

func main() {
	sh := &shell{in: bufio.NewScanner(os.Stdin), log: log.New(os.Stdout, "", 0)}
	sh.log.Print(usage)

	for sh.in.Scan() {
		line := strings.TrimSpace(sh.in.Text())
		if line == "" {
			continue
		}
		args := strings.Fields(line)
		if err := sh.dispatch(args[0], args[1:]); err != nil {
			sh.log.Printf("FAIL: %s", err)
		}
	}
}

func (sh *shell) dispatch(cmd string, args []string) error {
	switch cmd {
	case "mkfs":
		return sh.cmdMkfs(args)
	case "mount":
		return sh.cmdMount(args)
	case "ls":
		return sh.cmdLs(args)
	case "create":
		return sh.cmdCreate(args)
	case "link":
		return sh.cmdLink(args)
	case "unlink":
		return sh.cmdUnlink(args)
	case "symlink":
		return sh.cmdSymlink(args)
	case "stat":
		return sh.cmdStat(args)
	case "pwd":
		return sh.cmdPwd(args)
	case "truncate":
		return sh.cmdTruncate(args)
	case "open":
		return sh.cmdOpen(args)
	case "close":
		return sh.cmdClose(args)
	case "read":
		return sh.cmdRead(args)
	case "write":
		return sh.cmdWrite(args)
	case "seek":
		return sh.cmdSeek(args)
	case "dump":
		return sh.cmdDump(args)
	case "restore":
		return sh.cmdRestore(args)
	case "help":
		sh.log.Print(usage)
		return nil
	case "exit", "bye", "quit":
		os.Exit(0)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (sh *shell) requireMounted() error {
	if sh.fs == nil {
		return fmt.Errorf("no image mounted")
	}
	return nil
}

func (sh *shell) cmdMkfs(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: mkfs <image> <n> <size>")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad descriptor count: %w", err)
	}
	size, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("bad image size: %w", err)
	}
	fs, err := imagefs.Mkfs(args[0], n, size)
	if err != nil {
		return err
	}
	sh.fs = fs
	sh.log.Printf("INFO: formatted %s", args[0])
	return nil
}

func (sh *shell) cmdMount(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mount <image>")
	}
	fs, err := imagefs.Mount(args[0])
	if err != nil {
		return err
	}
	sh.fs = fs
	sh.log.Printf("INFO: mounted %s", args[0])
	return nil
}

func (sh *shell) cmdLs(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	for _, e := range sh.fs.ListRoot() {
		sh.log.Printf("INFO: %-16s %c %d", e.Name, e.Type, e.Index)
	}
	return nil
}

func (sh *shell) cmdCreate(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: create <name>")
	}
	idx, err := sh.fs.Create(sh.fs.Root(), args[0])
	if err != nil {
		return err
	}
	sh.log.Printf("INFO: created %s at descriptor %d", args[0], idx)
	return nil
}

func (sh *shell) cmdLink(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: link <src> <dst>")
	}
	if err := sh.fs.Link(args[0], args[1]); err != nil {
		return err
	}
	sh.log.Printf("INFO: linked %s -> %s", args[1], args[0])
	return nil
}

func (sh *shell) cmdUnlink(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: unlink <name>")
	}
	if err := sh.fs.Unlink(sh.fs.Root(), args[0]); err != nil {
		return err
	}
	sh.log.Printf("INFO: unlinked %s", args[0])
	return nil
}

func (sh *shell) cmdSymlink(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: symlink <target> <name>")
	}
	idx, err := sh.fs.Symlink(sh.fs.Root(), args[1], args[0])
	if err != nil {
		return err
	}
	sh.log.Printf("INFO: symlinked %s -> %s at descriptor %d", args[1], args[0], idx)
	return nil
}

func (sh *shell) cmdStat(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: stat <path>")
	}
	_, d, _, idx, err := sh.fs.Lookup(args[0], true)
	if err != nil {
		return err
	}
	sh.log.Printf("INFO: id=%d type=%c nlink=%d size=%d nblock=%d", idx, d.Type, d.NLink, d.Size, d.NBlock)
	return nil
}

func (sh *shell) cmdPwd(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: pwd <path>")
	}
	_, _, _, idx, err := sh.fs.Lookup(args[0], true)
	if err != nil {
		return err
	}
	p, err := sh.fs.Pwd(idx)
	if err != nil {
		return err
	}
	sh.log.Printf("INFO: %s", p)
	return nil
}

func (sh *shell) cmdTruncate(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: truncate <path> <size>")
	}
	size, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad size: %w", err)
	}
	if err := sh.fs.Truncate(args[0], size); err != nil {
		return err
	}
	sh.log.Printf("INFO: truncated %s to %d", args[0], size)
	return nil
}

func (sh *shell) cmdOpen(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: open <path>")
	}
	fd, err := sh.fs.Open(args[0])
	if err != nil {
		return err
	}
	sh.log.Printf("INFO: opened %s as fd %d", args[0], fd)
	return nil
}

func (sh *shell) cmdClose(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: close <fd>")
	}
	fd, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad fd: %w", err)
	}
	if err := sh.fs.Close(fd); err != nil {
		return err
	}
	sh.log.Printf("INFO: closed fd %d", fd)
	return nil
}

func (sh *shell) cmdRead(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: read <fd> <n>")
	}
	fd, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad fd: %w", err)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad count: %w", err)
	}
	text, err := sh.fs.ReadFD(fd, n)
	if err != nil {
		return err
	}
	sh.log.Printf("INFO: %s", text)
	return nil
}

// cmdWrite is the one command that consumes the "ask the user for a line"
// callback the core leaves external (spec.md §1): it prompts on stdout and
// reads the next scanner line as the text to write.
func (sh *shell) cmdWrite(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: write <fd> <n>")
	}
	fd, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad fd: %w", err)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad count: %w", err)
	}

	fmt.Print("> ")
	if !sh.in.Scan() {
		return fmt.Errorf("no input")
	}
	text := sh.in.Text()

	if err := sh.fs.WriteFD(fd, n, text); err != nil {
		return err
	}
	written := len(text)
	if written > n {
		written = n
	}
	sh.log.Printf("INFO: wrote %d bytes to fd %d", written, fd)
	return nil
}

func (sh *shell) cmdSeek(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: seek <fd> <pos>")
	}
	fd, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad fd: %w", err)
	}
	pos, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad position: %w", err)
	}
	if err := sh.fs.Seek(fd, pos); err != nil {
		return err
	}
	sh.log.Printf("INFO: fd %d at offset %d", fd, pos)
	return nil
}

func (sh *shell) cmdDump(args []string) error {
	if err := sh.requireMounted(); err != nil {
		return err
	}
	if len(args) != 3 {
		return fmt.Errorf("usage: dump <image> <archive> <codec>")
	}
	if err := imagefs.DumpImage(args[0], args[1], args[2]); err != nil {
		return err
	}
	sh.log.Printf("INFO: dumped %s to %s (%s)", args[0], args[1], args[2])
	return nil
}

func (sh *shell) cmdRestore(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: restore <archive> <image> <codec>")
	}
	if err := imagefs.RestoreImage(args[0], args[1], args[2]); err != nil {
		return err
	}
	sh.log.Printf("INFO: restored %s from %s (%s)", args[1], args[0], args[2])
	return nil
}
