// Package lalal separates stems through the LALAL.AI hosted API: upload the
// source file, poll until the split task settles, then download the stems.
package lalal
