/*

Process of compilation

Tensor Kernel (ir + tensor dialect ops) ->
	lower ->
Low Level IR (ir + embedded gcn instruction blocks) ->
	codegen ->
AMDGCN Assembly Text ->
	print

Low Level IR ->
	codegen ->
Binary Object (elf) ->
	link (ld.lld) ->
Loadable Device Binary (hsaco)

*/
package compiler
