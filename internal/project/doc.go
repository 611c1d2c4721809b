// Package project locates the build artifacts of a PlatformIO project.
//
// The exception decoder needs two files: the firmware ELF produced by the
// build, and the addr2line binary that belongs to the toolchain that built it.
// Both are derived from a project directory and an environment name:
//
//	loc := project.NewLocator(project.DefaultConfig(), logger)
//	md, err := loc.Metadata(ctx, "/home/me/blink", "d1_mini")
//	if err != nil {
//	    // *MetadataError
//	}
//	fmt.Println(md.ProgPath) // /home/me/blink/.pio/build/d1_mini/firmware.elf
//	addr2line, _ := project.Addr2linePath(md.CCPath)
//	fmt.Println(addr2line)   // .../toolchain-xtensa/bin/xtensa-lx106-elf-addr2line
//
// # Lookup Order
//
// The locator first asks PlatformIO itself (`pio project metadata --json-output`),
// which reports the program path and the compiler path. When pio is not installed
// or fails, it falls back to the conventional layout:
//   - Firmware: <project>/<build_dir>/<env>/firmware.elf
//   - Compiler: $PLATFORMIO_CORE_DIR/packages/<toolchain>/bin/<prefix>-gcc
//
// The addr2line path is the compiler path with its "-gcc" suffix replaced by
// "-addr2line".
//
// # Project Configuration
//
// platformio.ini is read for default_envs, build_dir, build_type and the
// monitor_* options. Keys in an [env:NAME] section override the common [env]
// section.
package project
