package x86_64

import "fmt"

// runtime returns the process entry point and the I/O helpers. Everything is
// done with raw Linux syscalls so the output links without a C runtime.
//
// toy_print writes rdi as a signed decimal followed by a newline.
// toy_read skips leading non-digits, reads an optionally signed decimal from
// stdin one byte at a time and returns it in rax (0 at end of input).
func runtime(entry string) string {
	return fmt.Sprintf(runtimeTemplate, entry)
}

const runtimeTemplate = `
_start:
    call %s
    mov rdi, 0
    mov rax, 60
    syscall

toy_print:
    push rbp
    mov rbp, rsp
    sub rsp, 32
    mov rax, rdi
    lea rsi, [rbp - 1]
    mov byte [rsi], 10
    mov rcx, 10
    xor r8, r8
    test rax, rax
    jns .digits
    neg rax
    mov r8, 1
.digits:
    xor rdx, rdx
    div rcx
    add dl, '0'
    dec rsi
    mov [rsi], dl
    test rax, rax
    jnz .digits
    test r8, r8
    jz .write
    dec rsi
    mov byte [rsi], '-'
.write:
    mov rax, 1
    mov rdi, 1
    mov rdx, rbp
    sub rdx, rsi
    syscall
    mov rsp, rbp
    pop rbp
    ret

toy_read:
    push rbp
    mov rbp, rsp
    sub rsp, 16
    xor r8, r8
    xor r9, r9
    xor r10, r10
.next:
    mov rax, 0
    mov rdi, 0
    lea rsi, [rbp - 8]
    mov rdx, 1
    syscall
    cmp rax, 1
    jne .done
    movzx rcx, byte [rbp - 8]
    cmp rcx, '-'
    jne .digit
    test r10, r10
    jnz .done
    mov r9, 1
    jmp .next
.digit:
    sub rcx, '0'
    cmp rcx, 9
    ja .other
    imul r8, r8, 10
    add r8, rcx
    mov r10, 1
    jmp .next
.other:
    test r10, r10
    jz .next
.done:
    mov rax, r8
    test r9, r9
    jz .return
    neg rax
.return:
    mov rsp, rbp
    pop rbp
    ret
`
