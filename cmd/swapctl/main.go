// Command swapctl creates, inspects and exercises paging-subsystem swap files.
package main

func main() {
	execute()
}
