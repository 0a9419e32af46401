// Package toolchain finds the package manager executables on PATH and reads
// their versions, for the doctor command.
package toolchain
