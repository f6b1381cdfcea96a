// Package wiretest runs a test body in a re-executed copy of the test
// binary. Tests of cross-process behavior use it to get a genuinely separate
// process whose lifetime, descriptors and exit status the parent test can
// assert on.
//
//	func TestSomethingCrossProcess(t *testing.T) {
//		if wiretest.Fork(t) {
//			// runs in the child process
//			doTheRiskyThing(t)
//			return
//		}
//		// parent: the child ran to completion with a zero exit status
//	}
package wiretest
